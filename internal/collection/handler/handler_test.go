package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"visitledger/internal/access"
	"visitledger/internal/collection/models"
	"visitledger/internal/collection/service"
	"visitledger/internal/collection/store"
	id "visitledger/pkg/domain"
	dErrors "visitledger/pkg/domain-errors"
	"visitledger/pkg/gateway"
	"visitledger/pkg/testutil"
)

var (
	owner   = id.MustParseAddress("0x1000000000000000000000000000000000000001")
	student = id.MustParseAddress("0x2000000000000000000000000000000000000002")
	other   = id.MustParseAddress("0x3000000000000000000000000000000000000003")
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl, err := access.New(owner)
	s.Require().NoError(err)
	st := store.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(ctrl, models.DefaultCatalog("ipfs://collection/{id}.json"), st, st, service.WithLogger(logger))

	r := chi.NewRouter()
	h := New(svc, gateway.DefaultGateway, logger)
	h.Register(r)
	h.RegisterAuthenticated(r)
	s.router = r
}

func (s *HandlerSuite) post(path string, caller id.Address, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, path, body)
	return testutil.DoRequest(s.router, testutil.WithCaller(req, caller))
}

func (s *HandlerSuite) get(path string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, path))
}

func (s *HandlerSuite) holdings(holder id.Address) []uint64 {
	rr := s.get("/collection/balances/" + holder.Hex())
	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[HoldingsResponse](s.T(), rr)
	out := make([]uint64, len(resp.Balances))
	for i, b := range resp.Balances {
		out[i] = b.Amount
	}
	return out
}

func (s *HandlerSuite) TestDemoFlow() {
	t := s.T()

	testutil.Given(t, "an initialized collection", func(t *testing.T) {
		testutil.AssertStatus(t, s.post("/collection/initialize", owner, nil), http.StatusNoContent)
		assert.Equal(t, []uint64{1, 1, 1, 1, 1, 1, 1, 1, 1}, s.holdings(owner))

		testutil.When(t, "the owner distributes classes 0 and 1 to the student", func(t *testing.T) {
			rr := s.post("/collection/distribute", owner, map[string]any{
				"to":        student.Hex(),
				"class_ids": []int{0, 1},
				"amounts":   []int{1, 1},
			})
			testutil.AssertStatus(t, rr, http.StatusNoContent)

			testutil.Then(t, "the units moved", func(t *testing.T) {
				assert.Equal(t, []uint64{0, 0, 1, 1, 1, 1, 1, 1, 1}, s.holdings(owner))
				assert.Equal(t, []uint64{1, 1, 0, 0, 0, 0, 0, 0, 0}, s.holdings(student))
			})
		})

		testutil.When(t, "the student transfers class 1 onward", func(t *testing.T) {
			rr := s.post("/collection/transfer", student, map[string]any{
				"to":        other.Hex(),
				"class_ids": []int{1},
				"amounts":   []int{1},
			})
			testutil.AssertStatus(t, rr, http.StatusNoContent)
			assert.Equal(t, uint64(0), s.holdings(student)[1])
			assert.Equal(t, uint64(1), s.holdings(other)[1])
		})

		testutil.When(t, "initialize is called again", func(t *testing.T) {
			testutil.AssertStatusAndError(t, s.post("/collection/initialize", owner, nil), http.StatusConflict, "already_initialized")
		})
	})
}

func (s *HandlerSuite) TestDistributeErrors() {
	t := s.T()
	testutil.AssertStatus(t, s.post("/collection/initialize", owner, nil), http.StatusNoContent)

	cases := []struct {
		name   string
		caller id.Address
		body   map[string]any
		status int
		code   dErrors.Code
	}{
		{"length mismatch", owner, map[string]any{"to": student.Hex(), "class_ids": []int{0, 1}, "amounts": []int{1}}, http.StatusBadRequest, "length_mismatch"},
		{"insufficient", owner, map[string]any{"to": student.Hex(), "class_ids": []int{0}, "amounts": []int{1000}}, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"out of catalog", owner, map[string]any{"to": student.Hex(), "class_ids": []int{9}, "amounts": []int{1}}, http.StatusBadRequest, "invalid_asset_id"},
		{"not owner", student, map[string]any{"to": other.Hex(), "class_ids": []int{0}, "amounts": []int{1}}, http.StatusForbidden, "unauthorized"},
		{"zero recipient", owner, map[string]any{"to": id.ZeroAddress.Hex(), "class_ids": []int{0}, "amounts": []int{1}}, http.StatusBadRequest, "invalid_recipient"},
		{"malformed recipient", owner, map[string]any{"to": "student", "class_ids": []int{0}, "amounts": []int{1}}, http.StatusBadRequest, "invalid_input"},
		{"negative amount", owner, map[string]any{"to": student.Hex(), "class_ids": []int{0}, "amounts": []int{-1}}, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			testutil.AssertStatusAndError(t, s.post("/collection/distribute", tc.caller, tc.body), tc.status, tc.code)
		})
	}
	assert.Equal(t, []uint64{1, 1, 1, 1, 1, 1, 1, 1, 1}, s.holdings(owner))
}

func (s *HandlerSuite) TestOperators() {
	t := s.T()
	testutil.AssertStatus(t, s.post("/collection/initialize", owner, nil), http.StatusNoContent)
	testutil.AssertStatus(t, s.post("/collection/distribute", owner, map[string]any{
		"to": student.Hex(), "class_ids": []int{2, 3}, "amounts": []int{1, 1},
	}), http.StatusNoContent)

	batch := map[string]any{
		"from": student.Hex(), "to": other.Hex(), "class_ids": []int{2, 3}, "amounts": []int{1, 1},
	}
	testutil.AssertStatusAndError(t, s.post("/collection/transfer", other, batch), http.StatusForbidden, "missing_approval")

	rr := s.post("/collection/operators", student, map[string]any{"operator": other.Hex(), "approved": true})
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "approved", true)

	testutil.AssertStatus(t, s.post("/collection/transfer", other, batch), http.StatusNoContent)
	assert.Equal(t, []uint64{0, 0, 1, 1, 0, 0, 0, 0, 0}, s.holdings(other))
}

func (s *HandlerSuite) TestTransferExplicitZeroFrom() {
	t := s.T()
	testutil.AssertStatus(t, s.post("/collection/initialize", owner, nil), http.StatusNoContent)
	testutil.AssertStatus(t, s.post("/collection/distribute", owner, map[string]any{
		"to": student.Hex(), "class_ids": []int{4}, "amounts": []int{1},
	}), http.StatusNoContent)

	rr := s.post("/collection/transfer", student, map[string]any{
		"from": id.ZeroAddress.Hex(), "to": other.Hex(), "class_ids": []int{4}, "amounts": []int{1},
	})
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	assert.Equal(t, []uint64{0, 0, 0, 0, 1, 0, 0, 0, 0}, s.holdings(student))
	assert.Equal(t, []uint64{0, 0, 0, 0, 0, 0, 0, 0, 0}, s.holdings(other))

	t.Run("omitted from debits the caller", func(t *testing.T) {
		req := &BatchRequest{To: other.Hex(), ClassIDs: []models.ClassID{4}, Amounts: []uint64{1}}
		require.NoError(t, req.Validate())
		assert.False(t, req.fromSet)

		req = &BatchRequest{From: "  ", To: other.Hex(), ClassIDs: []models.ClassID{4}, Amounts: []uint64{1}}
		require.NoError(t, req.Validate())
		assert.False(t, req.fromSet)
	})
}

func (s *HandlerSuite) TestReads() {
	t := s.T()

	testutil.When(t, "the collection is listed before initialization", func(t *testing.T) {
		rr := s.get("/collection")
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[CollectionResponse](t, rr)
		assert.False(t, resp.Initialized)
		assert.Equal(t, 9, resp.Size)
		require.Len(t, resp.Classes, 9)
		assert.Equal(t, "ipfs://collection/8.json", resp.Classes[8].URI)
		assert.Equal(t, "https://ipfs.io/ipfs/collection/8.json", resp.Classes[8].GatewayURL)
		assert.Zero(t, resp.Classes[8].TotalSupply)
	})

	testutil.When(t, "one class is read", func(t *testing.T) {
		rr := s.get("/collection/classes/4")
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[ClassResponse](t, rr)
		assert.Equal(t, models.ClassID(4), resp.ID)
	})

	testutil.When(t, "a class outside the catalog is read", func(t *testing.T) {
		testutil.AssertStatusAndError(t, s.get("/collection/classes/9"), http.StatusBadRequest, "invalid_asset_id")
		testutil.AssertStatusAndError(t, s.get("/collection/classes/x"), http.StatusBadRequest, "invalid_asset_id")
	})
}
