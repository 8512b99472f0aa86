package badger

// Key layout:
//
//	i:<sopInstanceUID>                  record (CBOR)
//	s:<studyInstanceUID>:<sopInstanceUID>  empty value, study membership
const (
	prefixInstance = "i:"
	prefixStudy    = "s:"
)

func instanceKey(uid string) []byte {
	return []byte(prefixInstance + uid)
}

func studyPrefix(studyUID string) []byte {
	return []byte(prefixStudy + studyUID + ":")
}

func studyKey(studyUID, uid string) []byte {
	return append(studyPrefix(studyUID), uid...)
}
