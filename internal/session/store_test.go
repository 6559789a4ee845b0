package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/shop-admin/internal/model"
)

type stubRemote struct {
	mu sync.Mutex

	loginResp *model.Session
	loginErr  error

	registerResp *model.Session
	registerErr  error
	registerInfo model.SignUpInfo

	profileResp  *model.Session
	profileErr   error
	profileCalls int

	updateResp *model.Session
	updateErr  error
	updateID   int64
	updateReq  model.ProfileUpdate
	updates    int

	pushErr   error
	pushID    int64
	pushToken string
}

func (s *stubRemote) Login(ctx context.Context, email, password string) (*model.Session, error) {
	return s.loginResp, s.loginErr
}

func (s *stubRemote) Register(ctx context.Context, info model.SignUpInfo) (*model.Session, error) {
	s.registerInfo = info
	return s.registerResp, s.registerErr
}

func (s *stubRemote) Profile(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileCalls++
	return s.profileResp, s.profileErr
}

func (s *stubRemote) Update(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.Session, error) {
	s.updates++
	s.updateID = id
	s.updateReq = upd
	return s.updateResp, s.updateErr
}

func (s *stubRemote) UpdatePushToken(ctx context.Context, id int64, token string) error {
	s.pushID = id
	s.pushToken = token
	return s.pushErr
}

type recordingJournal struct {
	mu    sync.Mutex
	kinds []EventKind
	err   error
}

func (j *recordingJournal) RecordSessionEvent(ctx context.Context, kind EventKind, s *model.Session) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.kinds = append(j.kinds, kind)
	return j.err
}

func (j *recordingJournal) recorded() []EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]EventKind(nil), j.kinds...)
}

// blockingJournal не отвечает, пока не закрыт release.
type blockingJournal struct {
	release chan struct{}
}

func (j *blockingJournal) RecordSessionEvent(ctx context.Context, kind EventKind, s *model.Session) error {
	select {
	case <-j.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runJournal(t *testing.T, store *Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunJournal(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func merchant(id int64) *model.Session {
	return &model.Session{ID: id, Username: "moda", ShopName: "Moda Urbana"}
}

func TestLoad_PopulatesSession(t *testing.T) {
	remote := &stubRemote{profileResp: merchant(1)}
	journal := &recordingJournal{}
	store := NewStore(remote, journal, nil)
	runJournal(t, store)

	require.True(t, store.Loading())

	store.Load(context.Background())

	assert.False(t, store.Loading())
	require.NotNil(t, store.Current())
	assert.Equal(t, int64(1), store.Current().ID)
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]EventKind{EventLoad}, journal.recorded())
	}, time.Second, 5*time.Millisecond)
}

func TestLoad_NullUserIsSignedOut(t *testing.T) {
	store := NewStore(&stubRemote{}, nil, nil)

	store.Load(context.Background())

	assert.False(t, store.Loading())
	assert.Nil(t, store.Current())
}

func TestLoad_TransportFailureFailsOpenToSignedOut(t *testing.T) {
	store := NewStore(&stubRemote{profileErr: errors.New("connection refused")}, nil, nil)

	store.Load(context.Background())

	assert.False(t, store.Loading())
	assert.Nil(t, store.Current())
}

func TestLogin_ReplacesSessionAndNotifies(t *testing.T) {
	remote := &stubRemote{loginResp: merchant(2)}
	store := NewStore(remote, nil, nil)

	var seen []*model.Session
	cancel := store.Subscribe(func(s *model.Session) { seen = append(seen, s) })
	defer cancel()

	sess, err := store.Login(context.Background(), "a@b.c", "pass")
	require.NoError(t, err)
	assert.Same(t, sess, store.Current())
	require.Len(t, seen, 1)
	assert.Same(t, sess, seen[0])
}

func TestLogin_PropagatesServerError(t *testing.T) {
	wantErr := errors.New("Credenciales inválidas")
	store := NewStore(&stubRemote{loginErr: wantErr}, nil, nil)

	_, err := store.Login(context.Background(), "a@b.c", "bad")
	assert.ErrorIs(t, err, wantErr)
	assert.Nil(t, store.Current())
}

func TestRegister_UsesAccumulatedInfo(t *testing.T) {
	remote := &stubRemote{registerResp: merchant(3)}
	store := NewStore(remote, nil, nil)

	store.SetSignUp(model.SignUpInfo{Email: "a@b.c", Password: "x"})
	_, err := store.Register(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteSignUp)

	info := store.SignUp()
	info.ShopName = "Moda Urbana"
	info.Username = "modaurbana"
	info.Category = model.CategoryApparel
	store.SetSignUp(info)

	sess, err := store.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), sess.ID)
	assert.Equal(t, "modaurbana", remote.registerInfo.Username)
	assert.Equal(t, model.SignUpInfo{}, store.SignUp())
}

func TestUpdateProfile_NoSessionIsSoftFailure(t *testing.T) {
	remote := &stubRemote{}
	store := NewStore(remote, nil, nil)

	ok, err := store.UpdateProfile(context.Background(), model.ProfileUpdate{Username: "x"})
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, remote.updates)
}

func TestUpdateProfile_ReplacesWholeSession(t *testing.T) {
	before := merchant(4)
	before.FCMToken = ptr("device")

	after := merchant(4)
	after.ShopName = "Moda Centro"

	remote := &stubRemote{loginResp: before, updateResp: after}
	store := NewStore(remote, nil, nil)
	_, err := store.Login(context.Background(), "a@b.c", "x")
	require.NoError(t, err)

	ok, err := store.UpdateProfile(context.Background(), model.ProfileUpdate{Username: "moda", ShopName: "Moda Centro"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(4), remote.updateID)

	cur := store.Current()
	assert.Same(t, after, cur)
	assert.Nil(t, cur.FCMToken, "no partial merge with the previous session")
	assert.Equal(t, "device", *before.FCMToken, "previous snapshot untouched")
}

func TestUpdateProfile_FailureKeepsSessionAndReturnsError(t *testing.T) {
	before := merchant(5)
	remote := &stubRemote{loginResp: before, updateErr: errors.New("El usuario ya existe")}
	store := NewStore(remote, nil, nil)
	_, _ = store.Login(context.Background(), "a@b.c", "x")

	ok, err := store.UpdateProfile(context.Background(), model.ProfileUpdate{Username: "dup"})
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Same(t, before, store.Current())
}

func TestRegisterPushToken(t *testing.T) {
	refreshed := merchant(6)
	refreshed.FCMToken = ptr("device-6")

	remote := &stubRemote{loginResp: merchant(6), profileResp: refreshed}
	store := NewStore(remote, nil, nil)

	assert.ErrorIs(t, store.RegisterPushToken(context.Background(), "device-6"), ErrNoSession)

	_, _ = store.Login(context.Background(), "a@b.c", "x")
	require.NoError(t, store.RegisterPushToken(context.Background(), "device-6"))

	assert.Equal(t, int64(6), remote.pushID)
	assert.Equal(t, "device-6", remote.pushToken)
	assert.Same(t, refreshed, store.Current())
}

func TestRegisterPushToken_RefreshFailureKeepsSession(t *testing.T) {
	before := merchant(7)
	remote := &stubRemote{loginResp: before, profileErr: errors.New("timeout")}
	store := NewStore(remote, nil, nil)
	_, _ = store.Login(context.Background(), "a@b.c", "x")

	err := store.RegisterPushToken(context.Background(), "device-7")
	assert.Error(t, err)
	assert.Same(t, before, store.Current())
}

func TestLogout_KeepsSession(t *testing.T) {
	remote := &stubRemote{loginResp: merchant(8)}
	store := NewStore(remote, nil, nil)
	_, _ = store.Login(context.Background(), "a@b.c", "x")

	require.NoError(t, store.Logout(context.Background()))
	assert.NotNil(t, store.Current())
}

func TestJournalFailureDoesNotFailMutation(t *testing.T) {
	journal := &recordingJournal{err: errors.New("db down")}
	store := NewStore(&stubRemote{loginResp: merchant(9)}, journal, nil)
	runJournal(t, store)

	_, err := store.Login(context.Background(), "a@b.c", "x")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]EventKind{EventLogin}, journal.recorded())
	}, time.Second, 5*time.Millisecond)
}

func TestSlowJournalDoesNotBlockMutation(t *testing.T) {
	journal := &blockingJournal{release: make(chan struct{})}
	defer close(journal.release)

	store := NewStore(&stubRemote{loginResp: merchant(11), profileResp: merchant(11)}, journal, nil)
	runJournal(t, store)

	done := make(chan error, 1)
	go func() {
		store.Load(context.Background())
		_, err := store.Login(context.Background(), "a@b.c", "x")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("login waited for the journal")
	}
	assert.Equal(t, int64(11), store.Current().ID)
}

func TestJournalQueueOverflowDropsEvents(t *testing.T) {
	journal := &recordingJournal{}
	store := NewStore(&stubRemote{loginResp: merchant(12)}, journal, nil)

	for i := 0; i < journalBuffer+10; i++ {
		_, err := store.Login(context.Background(), "a@b.c", "x")
		require.NoError(t, err)
	}
	assert.Len(t, store.events, journalBuffer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store.RunJournal(ctx)

	assert.Len(t, journal.recorded(), journalBuffer)
	assert.Empty(t, store.events)
}

func TestPublish_SendsOnlyLatestCommittedSession(t *testing.T) {
	store := NewStore(&stubRemote{}, nil, nil)

	var seen []int64
	cancel := store.Subscribe(func(s *model.Session) { seen = append(seen, s.ID) })
	defer cancel()

	store.commit(merchant(1))
	store.commit(merchant(2))
	store.publish()
	store.publish()

	assert.Equal(t, []int64{2}, seen)
}

func TestConcurrentMutations_LastNotificationMatchesCurrent(t *testing.T) {
	store := NewStore(&stubRemote{}, nil, nil)

	var (
		mu   sync.Mutex
		last *model.Session
	)
	cancel := store.Subscribe(func(s *model.Session) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		last = s
		mu.Unlock()
	})
	defer cancel()

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			store.replace(EventUpdate, merchant(id))
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Same(t, store.Current(), last)
}

func TestSubscribe_Cancel(t *testing.T) {
	store := NewStore(&stubRemote{loginResp: merchant(10)}, nil, nil)

	calls := 0
	cancel := store.Subscribe(func(*model.Session) { calls++ })
	cancel()

	_, _ = store.Login(context.Background(), "a@b.c", "x")
	assert.Equal(t, 0, calls)
}

func ptr[T any](v T) *T {
	return &v
}
