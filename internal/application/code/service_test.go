package code

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/portfolio-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockCodeStore struct{ mock.Mock }

func (m *mockCodeStore) Put(ctx context.Context, c *domain.VerificationCode) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockCodeStore) InvalidateUnused(ctx context.Context, owner domain.Owner) error {
	return m.Called(ctx, owner).Error(0)
}
func (m *mockCodeStore) FindAndConsume(ctx context.Context, owner domain.Owner, code string, now time.Time) (*domain.VerificationCode, error) {
	args := m.Called(ctx, owner, code, now)
	if c, _ := args.Get(0).(*domain.VerificationCode); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, msg string) error {
	return m.Called(ctx, to, msg).Error(0)
}

type mockResolver struct{ mock.Mock }

func (m *mockResolver) LookupByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockResolver) LookupByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	args := m.Called(ctx, phone)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockResolver) MintSession(ctx context.Context, accountID string) (*domain.Session, error) {
	args := m.Called(ctx, accountID)
	if s, _ := args.Get(0).(*domain.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- builder ---

func newService(cs codeStore, ml mailer, sms smsSender, res accountResolver) Service {
	return NewService(ServiceDeps{
		Store:    cs,
		Mailer:   ml,
		SMS:      sms,
		Identity: res,
		TTL:      10 * time.Minute,
	})
}

// --- Issue ---

func TestIssue_NoOwner_ReturnsBadRequest(t *testing.T) {
	svc := newService(nil, nil, nil, nil)
	_, err := svc.Issue(context.Background(), IssueRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_BothOwners_ReturnsBadRequest(t *testing.T) {
	svc := newService(nil, nil, nil, nil)
	_, err := svc.Issue(context.Background(), IssueRequest{Email: "a@b.com", Phone: "+15550100"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestIssue_Email_InvalidatesPriorThenPersistsAndSends(t *testing.T) {
	cs := &mockCodeStore{}
	ml := &mockMailer{}
	owner := domain.Owner{Email: "a@b.com"}

	cs.On("InvalidateUnused", mock.Anything, owner).Return(nil)
	cs.On("Put", mock.Anything, mock.MatchedBy(func(c *domain.VerificationCode) bool {
		return c.Owner == "email:a@b.com" && len(c.Code) == 6 && !c.Used && c.CodeID != ""
	})).Return(nil)
	ml.On("SendEmail", "a@b.com", mock.Anything, mock.Anything).Return(nil)

	svc := newService(cs, ml, nil, nil)
	res, err := svc.Issue(context.Background(), IssueRequest{Email: "a@b.com"})

	require.NoError(t, err)
	assert.Equal(t, domain.ChannelEmail, res.Channel)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), res.ExpiresAt, 5*time.Second)
	cs.AssertExpectations(t)
	ml.AssertExpectations(t)
}

func TestIssue_Phone_SendsSMS(t *testing.T) {
	cs := &mockCodeStore{}
	sms := &mockSMSSender{}
	owner := domain.Owner{Phone: "+15550100"}

	cs.On("InvalidateUnused", mock.Anything, owner).Return(nil)
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.VerificationCode")).Return(nil)
	sms.On("SendSMS", mock.Anything, "+15550100", mock.Anything).Return(nil)

	svc := newService(cs, nil, sms, nil)
	res, err := svc.Issue(context.Background(), IssueRequest{Phone: "+15550100"})

	require.NoError(t, err)
	assert.Equal(t, domain.ChannelSMS, res.Channel)
	sms.AssertExpectations(t)
}

func TestIssue_DispatchFailure_StillSucceeds(t *testing.T) {
	cs := &mockCodeStore{}
	ml := &mockMailer{}

	cs.On("InvalidateUnused", mock.Anything, mock.Anything).Return(nil)
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.VerificationCode")).Return(nil)
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newService(cs, ml, nil, nil)
	_, err := svc.Issue(context.Background(), IssueRequest{Email: "a@b.com"})

	// The code is persisted and valid even though delivery failed.
	require.NoError(t, err)
	cs.AssertExpectations(t)
}

func TestIssue_NoSMSSenderConfigured_StillSucceeds(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("InvalidateUnused", mock.Anything, mock.Anything).Return(nil)
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.VerificationCode")).Return(nil)

	// No SMS sender wired; issuance must not panic and the persisted code
	// stays valid, same as any other delivery failure.
	svc := newService(cs, nil, nil, nil)
	res, err := svc.Issue(context.Background(), IssueRequest{Phone: "+15550100"})

	require.NoError(t, err)
	assert.Equal(t, domain.ChannelSMS, res.Channel)
	cs.AssertExpectations(t)
}

func TestIssue_NoMailerConfigured_StillSucceeds(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("InvalidateUnused", mock.Anything, mock.Anything).Return(nil)
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.VerificationCode")).Return(nil)

	svc := newService(cs, nil, nil, nil)
	_, err := svc.Issue(context.Background(), IssueRequest{Email: "a@b.com"})
	require.NoError(t, err)
}

func TestIssue_PersistFailure_Fails(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("InvalidateUnused", mock.Anything, mock.Anything).Return(nil)
	cs.On("Put", mock.Anything, mock.Anything).Return(errors.New("dynamo down"))

	svc := newService(cs, nil, nil, nil)
	_, err := svc.Issue(context.Background(), IssueRequest{Email: "a@b.com"})
	require.Error(t, err)
}

// --- Verify ---

func TestVerify_MissingCode_ReturnsBadRequest(t *testing.T) {
	svc := newService(nil, nil, nil, nil)
	_, err := svc.Verify(context.Background(), VerifyRequest{Email: "a@b.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestVerify_NoMatch_ReturnsInvalidCode(t *testing.T) {
	cs := &mockCodeStore{}
	cs.On("FindAndConsume", mock.Anything, mock.Anything, "123456", mock.Anything).Return(nil, nil)

	svc := newService(cs, nil, nil, nil)
	_, err := svc.Verify(context.Background(), VerifyRequest{Email: "a@b.com", Code: "123456"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}

func TestVerify_HappyPath_ResolvesAccountAndMintsSession(t *testing.T) {
	cs := &mockCodeStore{}
	res := &mockResolver{}
	owner := domain.Owner{Email: "a@b.com"}

	cs.On("FindAndConsume", mock.Anything, owner, "123456", mock.Anything).
		Return(&domain.VerificationCode{CodeID: "c1", Owner: owner.Key(), Used: true}, nil)
	res.On("LookupByEmail", mock.Anything, "a@b.com").Return(&domain.Account{ID: "u1", Email: "a@b.com"}, nil)
	res.On("MintSession", mock.Anything, "u1").Return(&domain.Session{AccessToken: "at"}, nil)

	svc := newService(cs, nil, nil, res)
	result, err := svc.Verify(context.Background(), VerifyRequest{Email: "a@b.com", Code: "123456"})

	require.NoError(t, err)
	assert.Equal(t, "u1", result.Account.ID)
	assert.Equal(t, "at", result.Session.AccessToken)
	cs.AssertExpectations(t)
	res.AssertExpectations(t)
}

func TestVerify_MatchedCodeWithoutAccount_SurfacesGenericFailure(t *testing.T) {
	cs := &mockCodeStore{}
	res := &mockResolver{}

	cs.On("FindAndConsume", mock.Anything, mock.Anything, "123456", mock.Anything).
		Return(&domain.VerificationCode{CodeID: "c1", Used: true}, nil)
	res.On("LookupByEmail", mock.Anything, "ghost@b.com").Return(nil, domain.ErrNotFound)

	svc := newService(cs, nil, nil, res)
	_, err := svc.Verify(context.Background(), VerifyRequest{Email: "ghost@b.com", Code: "123456"})

	require.Error(t, err)
	// Configuration inconsistency must look identical to a wrong code.
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}

func TestVerify_PhoneOwner_LooksUpByPhone(t *testing.T) {
	cs := &mockCodeStore{}
	res := &mockResolver{}
	owner := domain.Owner{Phone: "+15550100"}

	cs.On("FindAndConsume", mock.Anything, owner, "654321", mock.Anything).
		Return(&domain.VerificationCode{CodeID: "c1", Used: true}, nil)
	res.On("LookupByPhone", mock.Anything, "+15550100").Return(&domain.Account{ID: "u2"}, nil)
	res.On("MintSession", mock.Anything, "u2").Return(&domain.Session{AccessToken: "at2"}, nil)

	svc := newService(cs, nil, nil, res)
	result, err := svc.Verify(context.Background(), VerifyRequest{Phone: "+15550100", Code: "654321"})

	require.NoError(t, err)
	assert.Equal(t, "u2", result.Account.ID)
}

// --- lifecycle scenario + concurrency, against an in-memory store that
// mirrors the conditional-write contract of the DynamoDB repo ---

type memStore struct {
	mu    sync.Mutex
	codes []*domain.VerificationCode
}

func (m *memStore) Put(_ context.Context, c *domain.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.codes = append(m.codes, &cp)
	return nil
}

func (m *memStore) InvalidateUnused(_ context.Context, owner domain.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.codes {
		if c.Owner == owner.Key() && !c.Used {
			c.Used = true
		}
	}
	return nil
}

func (m *memStore) FindAndConsume(_ context.Context, owner domain.Owner, code string, now time.Time) (*domain.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.VerificationCode
	for _, c := range m.codes {
		if c.Owner != owner.Key() || c.Code != code || c.Used || c.ExpiresAt <= now.Unix() {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	best.Used = true
	cp := *best
	return &cp, nil
}

func (m *memStore) unusedCount(owner domain.Owner) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.codes {
		if c.Owner == owner.Key() && !c.Used {
			n++
		}
	}
	return n
}

func (m *memStore) lastCode(owner domain.Owner) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.codes) - 1; i >= 0; i-- {
		if m.codes[i].Owner == owner.Key() {
			return m.codes[i].Code
		}
	}
	return ""
}

func newScenarioService(store *memStore) (Service, *mockResolver) {
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	res := &mockResolver{}
	res.On("LookupByEmail", mock.Anything, mock.Anything).Return(&domain.Account{ID: "u1"}, nil)
	res.On("MintSession", mock.Anything, "u1").Return(&domain.Session{AccessToken: "at"}, nil)
	return newService(store, ml, nil, res), res
}

func TestScenario_IssueVerifyConsumeOnce(t *testing.T) {
	store := &memStore{}
	svc, _ := newScenarioService(store)
	owner := domain.Owner{Email: "a@example.com"}
	ctx := context.Background()

	_, err := svc.Issue(ctx, IssueRequest{Email: "a@example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, store.unusedCount(owner))
	correct := store.lastCode(owner)

	// Wrong code: generic failure, row stays unused.
	wrongGuess := "000000"
	if correct == wrongGuess {
		wrongGuess = "111111"
	}
	_, err = svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: wrongGuess})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
	assert.Equal(t, 1, store.unusedCount(owner))

	// Correct code: consumed.
	result, err := svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: correct})
	require.NoError(t, err)
	assert.Equal(t, "u1", result.Account.ID)
	assert.Equal(t, 0, store.unusedCount(owner))

	// Same code again: generic failure.
	_, err = svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: correct})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}

func TestScenario_NewIssuanceInvalidatesOldCode(t *testing.T) {
	store := &memStore{}
	svc, _ := newScenarioService(store)
	owner := domain.Owner{Email: "a@example.com"}
	ctx := context.Background()

	_, err := svc.Issue(ctx, IssueRequest{Email: "a@example.com"})
	require.NoError(t, err)
	oldCode := store.lastCode(owner)

	_, err = svc.Issue(ctx, IssueRequest{Email: "a@example.com"})
	require.NoError(t, err)
	newCode := store.lastCode(owner)
	assert.Equal(t, 1, store.unusedCount(owner), "at most one open code per owner")

	if oldCode != newCode {
		_, err = svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: oldCode})
		require.Error(t, err, "old code must fail after reissue")
	}
	_, err = svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: newCode})
	require.NoError(t, err)
}

func TestScenario_ConcurrentVerify_ExactlyOneWinner(t *testing.T) {
	store := &memStore{}
	svc, _ := newScenarioService(store)
	ctx := context.Background()

	_, err := svc.Issue(ctx, IssueRequest{Email: "a@example.com"})
	require.NoError(t, err)
	correct := store.lastCode(domain.Owner{Email: "a@example.com"})

	const attempts = 32
	var wg sync.WaitGroup
	var successes atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: correct}); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load(), "exactly one concurrent verification may win")
}

func TestScenario_ExpiredCodeNeverMatches(t *testing.T) {
	store := &memStore{}
	base := time.Now()
	current := base
	ml := &mockMailer{}
	ml.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	svc := NewService(ServiceDeps{
		Store:  store,
		Mailer: ml,
		TTL:    10 * time.Minute,
		Now:    func() time.Time { return current },
	})
	ctx := context.Background()

	_, err := svc.Issue(ctx, IssueRequest{Email: "a@example.com"})
	require.NoError(t, err)
	correct := store.lastCode(domain.Owner{Email: "a@example.com"})

	current = base.Add(11 * time.Minute) // past the validity window
	_, err = svc.Verify(ctx, VerifyRequest{Email: "a@example.com", Code: correct})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidCode))
}
