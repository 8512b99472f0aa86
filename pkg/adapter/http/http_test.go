package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/dittodicom/pkg/admission"
	"github.com/marmos91/dittodicom/pkg/dicom"
	"github.com/marmos91/dittodicom/pkg/layout"
	"github.com/marmos91/dittodicom/pkg/listener"
	"github.com/marmos91/dittodicom/pkg/sopclass"
	"github.com/marmos91/dittodicom/pkg/store/index"
	"github.com/marmos91/dittodicom/pkg/store/index/memory"
	"github.com/marmos91/dittodicom/pkg/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ctImageStorage = "1.2.840.10008.5.1.4.1.1.2"

func newListener(t *testing.T, idx index.Index) *listener.Listener {
	t.Helper()

	cfg := &listener.Config{
		AETitle:             "STORESCP",
		Port:                11112,
		Root:                t.TempDir(),
		MaxDiskUsagePercent: 90,
		Strategy: &layout.Strategy{
			Name: "flat",
			Directories: []layout.Directory{
				{Name: "study", Tag: dicom.TagStudyInstanceUID},
			},
			File: layout.FileSpec{Tag: dicom.TagSOPInstanceUID, Extension: ".dcm"},
		},
		Rules:   &transcode.RuleSet{Name: "none"},
		Classes: &sopclass.Set{Name: "ct", Patterns: []string{ctImageStorage}},
	}

	l, err := listener.New(cfg, listener.Deps{
		Admission: admission.NewController(admission.WithUsageFunc(func(context.Context, string) (admission.Usage, error) {
			return admission.Usage{Total: 1000, Free: 500}, nil
		})),
		Index: idx,
		Now:   func() time.Time { return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return l
}

func ctBody(t *testing.T, uid string) []byte {
	t.Helper()
	ds := dicom.NewDataset(dicom.ExplicitVRLittleEndian).
		Set(dicom.TagSOPClassUID, ctImageStorage).
		Set(dicom.TagSOPInstanceUID, uid).
		Set(dicom.TagStudyInstanceUID, "1.2.3").
		Set(dicom.TagSeriesInstanceUID, "1.2.3.1").
		Set(dicom.TagPatientName, "DOE^JANE").
		Set(dicom.TagModality, "CT").
		SetPixelData([]byte{0x01, 0x02})
	body, err := ds.MarshalCBOR()
	require.NoError(t, err)
	return body
}

func do(t *testing.T, h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) StatusResponse {
	t.Helper()
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestEcho(t *testing.T) {
	a := New(newListener(t, nil), Config{})

	rec := do(t, a.Handler(), http.MethodPost, "/echo", nil, map[string]string{HeaderCallingAETitle: "CT01"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeStatus(t, rec)
	assert.Equal(t, "0x0000", resp.Status)
	assert.Equal(t, "Success", resp.StatusText)
}

func TestStoreAndLookup(t *testing.T) {
	idx := memory.New()
	a := New(newListener(t, idx), Config{})

	rec := do(t, a.Handler(), http.MethodPost, "/store", ctBody(t, "1.2.3.1.1"), map[string]string{
		HeaderCallingAETitle: "CT01",
		HeaderCalledAETitle:  "STORESCP",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeStatus(t, rec)
	require.Equal(t, "0x0000", resp.Status, resp.StatusText)
	assert.Equal(t, "1.2.3.1.1", resp.SOPInstanceUID)
	assert.False(t, resp.Skipped)
	assert.NotEmpty(t, resp.Path)

	rec = do(t, a.Handler(), http.MethodGet, "/instances/1.2.3.1.1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got index.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, resp.Path, got.Path)
	assert.Equal(t, "CT01", got.CallingAETitle)

	rec = do(t, a.Handler(), http.MethodGet, "/studies/1.2.3", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var study []index.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &study))
	assert.Len(t, study, 1)

	rec = do(t, a.Handler(), http.MethodPost, "/store", ctBody(t, "1.2.3.1.1"), nil)
	resp = decodeStatus(t, rec)
	assert.Equal(t, "0x0000", resp.Status)
	assert.True(t, resp.Skipped)
}

func TestStoreStatusInBody(t *testing.T) {
	a := New(newListener(t, nil), Config{})

	ds := dicom.NewDataset(dicom.ExplicitVRLittleEndian).
		Set(dicom.TagSOPClassUID, "1.2.840.10008.5.1.4.1.1.4").
		Set(dicom.TagSOPInstanceUID, "1.2.3.9").
		Set(dicom.TagStudyInstanceUID, "1.2.3").
		Set(dicom.TagSeriesInstanceUID, "1.2.3.1").
		Set(dicom.TagPatientName, "DOE^JANE")
	body, err := ds.MarshalCBOR()
	require.NoError(t, err)

	rec := do(t, a.Handler(), http.MethodPost, "/store", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0x0122", decodeStatus(t, rec).Status)
}

func TestStoreErrors(t *testing.T) {
	a := New(newListener(t, nil), Config{})

	rec := do(t, a.Handler(), http.MethodPost, "/store", []byte("not cbor"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, a.Handler(), http.MethodPost, "/store", ctBody(t, "1.2.3.1.2"), map[string]string{
		HeaderCalledAETitle: "OTHER",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClasses(t *testing.T) {
	a := New(newListener(t, nil), Config{})

	rec := do(t, a.Handler(), http.MethodGet, "/classes", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var classes []ClassResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &classes))
	uids := make([]string, 0, len(classes))
	for _, c := range classes {
		uids = append(uids, c.UID)
		assert.NotEmpty(t, c.TransferSyntaxes)
	}
	assert.ElementsMatch(t, []string{ctImageStorage, dicom.VerificationSOPClass.UID}, uids)
}

func TestInstanceLookupErrors(t *testing.T) {
	rec := do(t, New(newListener(t, nil), Config{}).Handler(), http.MethodGet, "/instances/1.2", nil, nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	a := New(newListener(t, memory.New()), Config{})
	rec = do(t, a.Handler(), http.MethodGet, "/instances/1.2", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, a.Handler(), http.MethodGet, "/studies/9.9", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdapterIdentity(t *testing.T) {
	a := New(newListener(t, nil), Config{})
	assert.Equal(t, "http", a.Protocol())
	assert.Equal(t, "STORESCP", a.Name())
	assert.Equal(t, 11112, a.Port())

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))
}
