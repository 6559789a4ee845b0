// Package session хранит сессию продавца и синхронизирует её с удалённым API.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/shop-admin/internal/model"
)

// ErrNoSession возвращается операциями, которым нужна сессия, если продавец не авторизован.
var ErrNoSession = errors.New("no session")

// ErrIncompleteSignUp возвращается при регистрации с незаполненными обязательными полями.
var ErrIncompleteSignUp = errors.New("sign-up info is incomplete")

// Remote описывает контракт удалённого хранилища сессий.
type Remote interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Register(ctx context.Context, info model.SignUpInfo) (*model.Session, error)
	Profile(ctx context.Context) (*model.Session, error)
	Update(ctx context.Context, id int64, upd model.ProfileUpdate) (*model.Session, error)
	UpdatePushToken(ctx context.Context, id int64, token string) error
}

// EventKind описывает причину замены сессии.
type EventKind string

const (
	EventLoad      EventKind = "load"
	EventLogin     EventKind = "login"
	EventRegister  EventKind = "register"
	EventUpdate    EventKind = "update"
	EventPushToken EventKind = "push_token"
	EventAbsent    EventKind = "absent"
)

// Journal получает по одному событию на каждую замену сессии.
type Journal interface {
	RecordSessionEvent(ctx context.Context, kind EventKind, s *model.Session) error
}

const (
	journalBuffer       = 64
	journalWriteTimeout = 5 * time.Second
)

type journalEvent struct {
	kind EventKind
	sess *model.Session
}

// Store хранит кэш сессии продавца. Каждая успешная операция заменяет сессию целиком.
// При гонке параллельных операций побеждает ответ, пришедший последним.
type Store struct {
	remote  Remote
	journal Journal
	logger  *zap.Logger

	mu      sync.RWMutex
	current *model.Session
	version uint64
	loading bool
	signUp  model.SignUpInfo

	subMu   sync.Mutex
	subs    map[int]func(*model.Session)
	nextSub int

	publishMu sync.Mutex
	published uint64

	events chan journalEvent
}

// NewStore создаёт кэш сессии. Журнал может быть nil; события журнала пишет RunJournal.
// До завершения первого Load хранилище находится в состоянии загрузки.
func NewStore(remote Remote, journal Journal, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		remote:  remote,
		journal: journal,
		logger:  logger,
		loading: true,
		subs:    make(map[int]func(*model.Session)),
	}
	if journal != nil {
		s.events = make(chan journalEvent, journalBuffer)
	}
	return s
}

// Current возвращает текущую сессию или nil. Возвращаемое значение нельзя изменять.
func (s *Store) Current() *model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Loading сообщает, выполняется ли первоначальная загрузка сессии.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Subscribe регистрирует обработчик изменений сессии и возвращает функцию отписки.
// Обработчики вызываются последовательно и не должны изменять хранилище.
func (s *Store) Subscribe(fn func(*model.Session)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// Load запрашивает текущую сессию по cookie. Отсутствие продавца и любые ошибки
// приводят к состоянию «не авторизован», ошибка только логируется.
func (s *Store) Load(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	sess, err := s.remote.Profile(ctx)
	if err != nil {
		s.logger.Warn("session load failed, treating as signed out", zap.Error(err))
		s.replace(EventAbsent, nil)
		return
	}
	if sess == nil {
		s.replace(EventAbsent, nil)
		return
	}
	s.replace(EventLoad, sess)
}

// Login выполняет вход. Ошибка сервера возвращается вызывающему коду.
func (s *Store) Login(ctx context.Context, email, password string) (*model.Session, error) {
	sess, err := s.remote.Login(ctx, email, password)
	if err != nil {
		s.logger.Info("login rejected", zap.Error(err))
		return nil, err
	}
	s.replace(EventLogin, sess)
	return sess, nil
}

// SignUp возвращает накопленные данные регистрации.
func (s *Store) SignUp() model.SignUpInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signUp
}

// SetSignUp заменяет накопленные данные регистрации.
func (s *Store) SetSignUp(info model.SignUpInfo) {
	s.mu.Lock()
	s.signUp = info
	s.mu.Unlock()
}

// Register регистрирует магазин по данным, накопленным мастером регистрации.
func (s *Store) Register(ctx context.Context) (*model.Session, error) {
	info := s.SignUp()
	if missing := info.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteSignUp, missing)
	}

	sess, err := s.remote.Register(ctx, info)
	if err != nil {
		s.logger.Info("registration rejected", zap.Error(err))
		return nil, err
	}

	s.mu.Lock()
	s.signUp = model.SignUpInfo{}
	s.mu.Unlock()

	s.replace(EventRegister, sess)
	return sess, nil
}

// UpdateProfile отправляет полное обновление профиля. Без сессии возвращает false без ошибки.
func (s *Store) UpdateProfile(ctx context.Context, upd model.ProfileUpdate) (bool, error) {
	cur := s.Current()
	if cur == nil {
		return false, nil
	}

	sess, err := s.remote.Update(ctx, cur.ID, upd)
	if err != nil {
		s.logger.Error("profile update failed", zap.Error(err), zap.Int64("merchantID", cur.ID))
		return false, err
	}
	s.replace(EventUpdate, sess)
	return true, nil
}

// RegisterPushToken сохраняет push-токен и перечитывает сессию с сервера.
// Если перечитать не удалось, прежняя сессия остаётся в кэше.
func (s *Store) RegisterPushToken(ctx context.Context, token string) error {
	cur := s.Current()
	if cur == nil {
		return ErrNoSession
	}

	if err := s.remote.UpdatePushToken(ctx, cur.ID, token); err != nil {
		s.logger.Error("push token update failed", zap.Error(err), zap.Int64("merchantID", cur.ID))
		return err
	}

	sess, err := s.remote.Profile(ctx)
	if err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("refresh session: %w", ErrNoSession)
	}
	s.replace(EventPushToken, sess)
	return nil
}

// Logout пока ничего не делает: завершение сессии на сервере не реализовано.
func (s *Store) Logout(ctx context.Context) error {
	s.logger.Debug("logout requested, session kept")
	return nil
}

func (s *Store) replace(kind EventKind, sess *model.Session) {
	s.commit(sess)
	s.enqueue(kind, sess)
	s.publish()
}

func (s *Store) commit(sess *model.Session) {
	s.mu.Lock()
	s.current = sess
	s.version++
	s.mu.Unlock()
}

// publish уведомляет подписчиков о сессии, которая сейчас в кэше.
// Версия, о которой уже сообщили, повторно не отправляется.
func (s *Store) publish() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.RLock()
	cur, version := s.current, s.version
	s.mu.RUnlock()

	if version == s.published {
		return
	}
	s.published = version
	s.notify(cur)
}

func (s *Store) enqueue(kind EventKind, sess *model.Session) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- journalEvent{kind: kind, sess: sess}:
	default:
		s.logger.Warn("session journal queue full, event dropped", zap.String("event", string(kind)))
	}
}

// RunJournal записывает события журнала до отмены контекста, затем дописывает накопленные.
// Ошибки журнала только логируются.
func (s *Store) RunJournal(ctx context.Context) {
	if s.events == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-s.events:
					s.record(context.Background(), ev)
				default:
					return
				}
			}
		case ev := <-s.events:
			s.record(ctx, ev)
		}
	}
}

func (s *Store) record(ctx context.Context, ev journalEvent) {
	ctx, cancel := context.WithTimeout(ctx, journalWriteTimeout)
	defer cancel()

	if err := s.journal.RecordSessionEvent(ctx, ev.kind, ev.sess); err != nil {
		s.logger.Warn("session journal write failed", zap.Error(err), zap.String("event", string(ev.kind)))
	}
}

func (s *Store) notify(sess *model.Session) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(*model.Session), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}
