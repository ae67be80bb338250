package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"maestro/internal/privacy/crypto"
	"maestro/internal/privacy/detect"
	"maestro/internal/privacy/models"
	"maestro/internal/privacy/store"
	id "maestro/pkg/domain"
	dErrors "maestro/pkg/domain-errors"
	"maestro/pkg/platform/audit"
	"maestro/pkg/requestcontext"
)

type PseudonymizerSuite struct {
	suite.Suite
	store   *store.InMemory
	crypto  *crypto.Service
	auditor *audit.MemoryPublisher
	service *Pseudonymizer
	now     time.Time
	ctx     context.Context
}

func TestPseudonymizerSuite(t *testing.T) {
	suite.Run(t, new(PseudonymizerSuite))
}

func (s *PseudonymizerSuite) SetupTest() {
	var err error
	s.store = store.NewInMemory()
	s.crypto, err = crypto.New("pseudonymizer-suite-key", "pseudonymizer-iv")
	s.Require().NoError(err)
	s.auditor = audit.NewMemoryPublisher()

	s.service, err = New(s.store, s.crypto, detect.New(), WithAuditPublisher(s.auditor))
	s.Require().NoError(err)

	s.now = time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *PseudonymizerSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.crypto, detect.New())
		s.Error(err)
		s.Contains(err.Error(), "record store is required")
	})

	s.Run("nil crypto returns error", func() {
		_, err := New(s.store, nil, detect.New())
		s.Error(err)
		s.Contains(err.Error(), "crypto service is required")
	})

	s.Run("nil detector returns error", func() {
		_, err := New(s.store, s.crypto, nil)
		s.Error(err)
		s.Contains(err.Error(), "detector is required")
	})
}

func (s *PseudonymizerSuite) TestPseudonymize() {
	s.Run("clean text is returned unchanged", func() {
		out, err := s.service.Pseudonymize(s.ctx, "Hello, how can I help?", models.Scope{})
		s.NoError(err)
		s.Equal("Hello, how can I help?", out)
		s.Equal(0, s.store.Len())
	})

	s.Run("empty and whitespace text are no-ops", func() {
		out, err := s.service.Pseudonymize(s.ctx, "", models.Scope{})
		s.NoError(err)
		s.Empty(out)

		out, err = s.service.Pseudonymize(s.ctx, "   \n ", models.Scope{})
		s.NoError(err)
		s.Equal("   \n ", out)
	})

	s.Run("national ID is replaced and recorded", func() {
		conversationID := id.ConversationID(uuid.New())
		scope := models.ForConversation(conversationID)

		out, err := s.service.Pseudonymize(s.ctx, "Meu CPF é 123.456.789-00", scope)
		s.Require().NoError(err)
		s.True(strings.HasPrefix(out, "Meu CPF é {"), "got %q", out)
		s.NotContains(out, "123.456.789-00")

		records, err := s.store.FindByScope(s.ctx, scope)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		record := records[0]
		s.Equal(models.KindNationalID, record.DataKind)
		s.Equal(s.now, record.CreatedAt)
		s.Equal(s.now.Add(24*time.Hour), record.ExpiresAt)
		s.Equal(s.crypto.Hash("123.456.789-00"), record.OriginalValueHash)
		s.Nil(record.RevertedAt)

		plaintext, err := s.crypto.Decrypt(record.EncryptedValue)
		s.Require().NoError(err)
		s.Equal("123.456.789-00", plaintext)

		s.Equal("{"+record.Token.String()+"}", out[len("Meu CPF é "):])
	})

	s.Run("repeated value produces one record and one token", func() {
		out, err := s.service.Pseudonymize(s.ctx, "call 111.222.333-44 or 111.222.333-44 again", models.Scope{})
		s.Require().NoError(err)

		records, err := s.store.FindByScope(s.ctx, models.Scope{ConversationID: nil})
		s.Require().NoError(err)

		var ids []*models.Record
		for _, r := range records {
			if r.DataKind == models.KindNationalID && s.crypto.VerifyHash("111.222.333-44", r.OriginalValueHash) {
				ids = append(ids, r)
			}
		}
		s.Require().Len(ids, 1)

		token := "{" + ids[0].Token.String() + "}"
		s.Equal(2, strings.Count(out, token))
		s.NotContains(out, "111.222.333-44")
	})

	s.Run("emits a compliance audit event", func() {
		_, err := s.service.Pseudonymize(s.ctx, "fale com suporte@example.com", models.Scope{})
		s.Require().NoError(err)

		events := s.auditor.ByAction(audit.ActionTextPseudonymized)
		s.Require().NotEmpty(events)
		s.Equal(audit.CategoryCompliance, events[len(events)-1].Category)
	})
}

func (s *PseudonymizerSuite) TestRoundTrip() {
	original := "Olá, sou Maria Oliveira, CPF 123.456.789-00, CNPJ 12.345.678/0001-99, " +
		"email maria@example.com, telefone (11) 98765-4321"

	pseudonymized, err := s.service.Pseudonymize(s.ctx, original, models.Scope{})
	s.Require().NoError(err)
	s.NotContains(pseudonymized, "Maria Oliveira")
	s.NotContains(pseudonymized, "123.456.789-00")
	s.NotContains(pseudonymized, "12.345.678/0001-99")
	s.NotContains(pseudonymized, "maria@example.com")

	reverted, err := s.service.Revert(s.ctx, pseudonymized, models.Scope{})
	s.Require().NoError(err)
	s.Equal(original, reverted)
	s.False(tokenPattern.MatchString(reverted), "no placeholder may remain after reversal")
}

func (s *PseudonymizerSuite) TestRevert() {
	s.Run("plain text without tokens is unchanged", func() {
		out, err := s.service.Revert(s.ctx, "nothing to see here", models.Scope{})
		s.NoError(err)
		s.Equal("nothing to see here", out)
	})

	s.Run("empty text is a no-op", func() {
		out, err := s.service.Revert(s.ctx, "", models.Scope{})
		s.NoError(err)
		s.Empty(out)
	})

	s.Run("unknown token is left as-is", func() {
		orphan := "{" + uuid.NewString() + "}"
		out, err := s.service.Revert(s.ctx, "resultado: "+orphan, models.Scope{})
		s.NoError(err)
		s.Equal("resultado: "+orphan, out)
	})

	s.Run("reversal stamps the record", func() {
		out, err := s.service.Pseudonymize(s.ctx, "CPF 987.654.321-00 cadastrado", models.Scope{})
		s.Require().NoError(err)

		_, err = s.service.Revert(s.ctx, out, models.Scope{})
		s.Require().NoError(err)

		records, err := s.store.FindByScope(s.ctx, models.Scope{})
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Require().NotNil(records[0].RevertedAt)
		s.Equal(s.now, *records[0].RevertedAt)
	})

	s.Run("lookup ignores scope filters", func() {
		conversationID := id.ConversationID(uuid.New())
		out, err := s.service.Pseudonymize(s.ctx, "CPF 222.333.444-55", models.ForConversation(conversationID))
		s.Require().NoError(err)

		// Revert with a completely different scope still resolves the token.
		other := models.ForConversation(id.ConversationID(uuid.New()))
		reverted, err := s.service.Revert(s.ctx, out, other)
		s.Require().NoError(err)
		s.Contains(reverted, "222.333.444-55")
	})
}

func (s *PseudonymizerSuite) TestGetPseudonymizationMap() {
	conversationID := id.ConversationID(uuid.New())
	scope := models.ForConversation(conversationID)

	_, err := s.service.Pseudonymize(s.ctx, "contato: ana@example.com e CPF 111.222.333-44", scope)
	s.Require().NoError(err)

	mapping, err := s.service.GetPseudonymizationMap(s.ctx, scope)
	s.Require().NoError(err)
	s.Len(mapping, 2)

	values := make([]string, 0, len(mapping))
	for _, v := range mapping {
		values = append(values, v)
	}
	s.Contains(values, "ana@example.com")
	s.Contains(values, "111.222.333-44")
}

func (s *PseudonymizerSuite) TestPurgeExpired() {
	shortLived, err := New(s.store, s.crypto, detect.New(), WithTTL(time.Minute))
	s.Require().NoError(err)

	_, err = shortLived.Pseudonymize(s.ctx, "CPF 111.222.333-44", models.Scope{})
	s.Require().NoError(err)
	_, err = s.service.Pseudonymize(s.ctx, "CPF 999.888.777-66", models.Scope{})
	s.Require().NoError(err)
	s.Equal(2, s.store.Len())

	s.Run("removes only expired records", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		s.Require().NoError(s.service.PurgeExpired(later))
		s.Equal(1, s.store.Len())
	})

	s.Run("second sweep is a no-op, not an error", func() {
		later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour))
		s.Require().NoError(s.service.PurgeExpired(later))
		s.Equal(1, s.store.Len())
	})

	s.Run("expiry applies regardless of reverted state", func() {
		out, err := s.service.Pseudonymize(s.ctx, "CPF 444.555.666-77", models.Scope{})
		s.Require().NoError(err)
		_, err = s.service.Revert(s.ctx, out, models.Scope{})
		s.Require().NoError(err)

		wayLater := requestcontext.WithTime(context.Background(), s.now.Add(48*time.Hour))
		s.Require().NoError(s.service.PurgeExpired(wayLater))
		s.Equal(0, s.store.Len())
	})
}

// failingStore wraps the in-memory store and fails Create after a threshold,
// simulating a storage outage mid-pseudonymization.
type failingStore struct {
	*store.InMemory
	allowed int
	created int
}

func (f *failingStore) Create(ctx context.Context, record *models.Record) error {
	if f.created >= f.allowed {
		return errors.New("connection reset by peer")
	}
	f.created++
	return f.InMemory.Create(ctx, record)
}

func (s *PseudonymizerSuite) TestStorageFailureAbortsBeforeSubstitution() {
	failing := &failingStore{InMemory: store.NewInMemory(), allowed: 1}
	svc, err := New(failing, s.crypto, detect.New())
	s.Require().NoError(err)

	// Two distinct values; the second Create fails. No substitution may have
	// happened: the caller gets an error and no partially tokenized text.
	out, err := svc.Pseudonymize(s.ctx, "CPF 111.222.333-44 e email ana@example.com", models.Scope{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.Empty(out)
}
