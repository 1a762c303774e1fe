package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/openfluidics/syrinx/internal/adapters/http"
	"github.com/openfluidics/syrinx/internal/adapters/memory"
	"github.com/openfluidics/syrinx/pkg/domain"
	"github.com/openfluidics/syrinx/pkg/session"
	"github.com/openfluidics/syrinx/pkg/topology"
)

type stubTransferer struct {
	outcome domain.TransferOutcome
	err     error
}

func (s *stubTransferer) Transfer(ctx context.Context, source, target string, volume float64) (domain.TransferOutcome, error) {
	return s.outcome, s.err
}

func testGraph(t *testing.T) *topology.Graph {
	t.Helper()
	monomer, err := domain.NewVessel("monomer", 100, 80, false, true, "monomer")
	require.NoError(t, err)
	reactor, err := domain.NewVessel("reactor", 250, 0, true, true, "")
	require.NoError(t, err)

	pump := &domain.Device{
		Name: "pump_a", Kind: domain.KindSyringePump,
		Bus: "hotel", Address: 1, Capacity: 5,
	}
	links := []domain.Link{
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 1, Target: "monomer"},
		{Type: domain.LinkVolumetric, Source: "pump_a", SourcePort: 2, Target: "reactor"},
	}
	g, err := topology.New([]*domain.Vessel{monomer, reactor}, []*domain.Device{pump}, links)
	require.NoError(t, err)
	return g
}

func newTestServer(t *testing.T, transferer httpadapter.Transferer) (http.Handler, *session.Manager) {
	t.Helper()
	runs := session.NewManager(memory.New())
	return httpadapter.NewHandler(testGraph(t), transferer, runs), runs
}

func TestHealthz(t *testing.T) {
	handler, _ := newTestServer(t, &stubTransferer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestDescribeTopology(t *testing.T) {
	handler, _ := newTestServer(t, &stubTransferer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topology", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Vessels []string `json:"vessels"`
		Devices []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.ElementsMatch(t, []string{"monomer", "reactor"}, resp.Vessels)
	require.Len(t, resp.Devices, 1)
	assert.Equal(t, "pump_a", resp.Devices[0].Name)
}

func TestListVessels(t *testing.T) {
	handler, _ := newTestServer(t, &stubTransferer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vessels", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snapshots []domain.VesselSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 2)
	assert.Equal(t, "monomer", snapshots[0].Name)
	assert.Equal(t, 80.0, snapshots[0].CurrentVolume)
}

func TestCreateTransferSuccess(t *testing.T) {
	handler, _ := newTestServer(t, &stubTransferer{
		outcome: domain.TransferOutcome{
			Status: domain.TransferCompleted, Source: "monomer", Target: "reactor",
			Requested: 10, VolumeMoved: 10, StepsCompleted: 2, StepsPlanned: 2,
		},
	})

	body := strings.NewReader(`{"source": "monomer", "target": "reactor", "volume": 10}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfers", body))

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome domain.TransferOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, domain.TransferCompleted, outcome.Status)
	assert.Equal(t, 10.0, outcome.VolumeMoved)
}

func TestCreateTransferValidationRejected(t *testing.T) {
	handler, _ := newTestServer(t, &stubTransferer{
		err: &domain.ValidationError{Reason: "volume must be positive"},
	})

	body := strings.NewReader(`{"source": "monomer", "target": "reactor", "volume": -1}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfers", body))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "volume must be positive")
}

func TestCreateTransferPartialConflict(t *testing.T) {
	partial := &domain.PartialTransferError{
		Source: "monomer", Target: "reactor",
		StepsCompleted: 1, StepsPlanned: 3, Moved: 5,
		Cause: &domain.DeviceUnresponsiveError{Bus: "hotel", Address: 1, Command: "DISP", Attempts: 4},
	}
	handler, _ := newTestServer(t, &stubTransferer{
		outcome: domain.TransferOutcome{
			Status: domain.TransferPartial, Source: "monomer", Target: "reactor",
			Requested: 15, VolumeMoved: 5, StepsCompleted: 1, StepsPlanned: 3,
		},
		err: partial,
	})

	body := strings.NewReader(`{"source": "monomer", "target": "reactor", "volume": 15}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfers", body))

	require.Equal(t, http.StatusConflict, rec.Code)
	var outcome domain.TransferOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, domain.TransferPartial, outcome.Status)
	assert.Equal(t, 5.0, outcome.VolumeMoved)
}

func TestCreateTransferBadBody(t *testing.T) {
	handler, _ := newTestServer(t, &stubTransferer{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transfers", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunEndpoints(t *testing.T) {
	handler, runs := newTestServer(t, &stubTransferer{})
	ctx := context.Background()

	rec1, err := runs.Start(ctx, "reaction")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), rec1.ID)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+rec1.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "reaction", got.Phase)
	assert.Equal(t, domain.RunRunning, got.Status)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
