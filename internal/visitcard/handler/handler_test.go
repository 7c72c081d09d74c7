package handler

import (
	"bytes"
	"encoding/json"
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
	"visitledger/internal/visitcard/service"
	"visitledger/internal/visitcard/store"
	id "visitledger/pkg/domain"
	"visitledger/pkg/gateway"
	"visitledger/pkg/testutil"
)

var (
	owner   = id.MustParseAddress("0x1000000000000000000000000000000000000001")
	student = id.MustParseAddress("0x2000000000000000000000000000000000000002")
	other   = id.MustParseAddress("0x3000000000000000000000000000000000000003")
)

// HandlerSuite exercises the handler against the real registry on an
// in-memory store.
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
	h := New(service.New(ctrl, st, st, service.WithLogger(logger)), gateway.DefaultGateway, logger)

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterAuthenticated(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path string, caller *id.Address, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if caller != nil {
		req = testutil.WithCaller(req, *caller)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) issue(recipient id.Address) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/visit-cards", &owner, map[string]string{
		"recipient":    recipient.Hex(),
		"metadata_uri": "ipfs://QmVisitCardMetadata.json",
		"name":         "Alice",
		"external_id":  "S123",
		"course":       "Blockchain",
		"period":       "2025",
	})
}

func (s *HandlerSuite) TestIssueAndRead() {
	t := s.T()

	testutil.Given(t, "the owner issues a card to the student", func(t *testing.T) {
		rr := s.issue(student)
		testutil.AssertStatus(t, rr, http.StatusCreated)
		testutil.AssertJSONContains(t, rr, "id", "1")

		testutil.When(t, "the card is read by id", func(t *testing.T) {
			rr := s.do(http.MethodGet, "/visit-cards/1", nil, nil)
			testutil.AssertStatusOK(t, rr)
			resp := testutil.UnmarshalResponse[CredentialResponse](t, rr)

			testutil.Then(t, "every field is returned unchanged", func(t *testing.T) {
				assert.Equal(t, student.Hex(), resp.Owner)
				assert.Equal(t, "ipfs://QmVisitCardMetadata.json", resp.MetadataURI)
				assert.Equal(t, "https://ipfs.io/ipfs/QmVisitCardMetadata.json", resp.GatewayURL)
				assert.Equal(t, "Alice", resp.Name)
				assert.Equal(t, "S123", resp.ExternalID)
				assert.False(t, resp.Transferable)
			})
		})

		testutil.When(t, "the holder is looked up", func(t *testing.T) {
			rr := s.do(http.MethodGet, "/holders/"+student.Hex()+"/visit-card", nil, nil)
			testutil.AssertStatusOK(t, rr)
			resp := testutil.UnmarshalResponse[HolderResponse](t, rr)
			assert.Equal(t, uint64(1), resp.Balance)
			require.NotNil(t, resp.Credential)
			assert.Equal(t, "1", resp.Credential.ID)
		})
	})
}

func (s *HandlerSuite) TestIssueRejections() {
	t := s.T()
	testutil.AssertStatus(t, s.issue(student), http.StatusCreated)

	testutil.When(t, "the same recipient is issued again", func(t *testing.T) {
		testutil.AssertStatusAndError(t, s.issue(student), http.StatusConflict, "duplicate_issuance")
	})

	testutil.When(t, "a non-owner issues", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/visit-cards", &student, map[string]string{"recipient": other.Hex()})
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
	})

	testutil.When(t, "no caller is attached", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/visit-cards", nil, map[string]string{"recipient": other.Hex()})
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "unauthorized")
	})

	testutil.When(t, "the recipient is malformed", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/visit-cards", &owner, map[string]string{"recipient": "alice"})
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
	})

	testutil.When(t, "the body is not JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/visit-cards", bytes.NewBufferString("not json"))
		rr := testutil.DoRequest(s.router, testutil.WithCaller(req, owner))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *HandlerSuite) TestOwnershipChangesAreForbidden() {
	t := s.T()
	testutil.AssertStatus(t, s.issue(student), http.StatusCreated)

	for _, caller := range []id.Address{owner, student, other} {
		rr := s.do(http.MethodPost, "/visit-cards/1/transfer", &caller, map[string]any{
			"from": student.Hex(),
			"to":   other.Hex(),
		})
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "transfer_disabled")

		rr = s.do(http.MethodPost, "/visit-cards/1/approve", &caller, map[string]any{"operator": other.Hex()})
		testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "transfer_disabled")
	}

	rr := s.do(http.MethodPost, "/visit-cards/1/transfer", &student, map[string]any{
		"from": student.Hex(),
		"to":   other.Hex(),
		"safe": true,
		"data": []byte{0x01},
	})
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "transfer_disabled")

	rr = s.do(http.MethodGet, "/visit-cards/1", nil, nil)
	var resp CredentialResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, student.Hex(), resp.Owner)
}

func (s *HandlerSuite) TestReadMisses() {
	t := s.T()

	testutil.When(t, "the id does not exist", func(t *testing.T) {
		testutil.AssertStatusAndError(t, s.do(http.MethodGet, "/visit-cards/7", nil, nil), http.StatusNotFound, "unknown_credential")
	})

	testutil.When(t, "the id is not a number", func(t *testing.T) {
		testutil.AssertStatusAndError(t, s.do(http.MethodGet, "/visit-cards/abc", nil, nil), http.StatusNotFound, "unknown_credential")
	})

	testutil.When(t, "the holder has no card", func(t *testing.T) {
		rr := s.do(http.MethodGet, "/holders/"+other.Hex()+"/visit-card", nil, nil)
		testutil.AssertStatusOK(t, rr)
		resp := testutil.UnmarshalResponse[HolderResponse](t, rr)
		assert.Zero(t, resp.Balance)
		assert.Nil(t, resp.Credential)
	})

	testutil.When(t, "the holder address is malformed", func(t *testing.T) {
		testutil.AssertStatus(t, s.do(http.MethodGet, "/holders/nobody/visit-card", nil, nil), http.StatusBadRequest)
	})
}
