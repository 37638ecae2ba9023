package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/errs"
	"ppesuite/internal/ports"
)

const (
	stateTTL         = 10 * time.Minute
	stateKeyPrefix   = "oauth_state:"
	sessionKeyPrefix = "session:"
)

var (
	ErrInvalidState    = errors.New("login state is missing or expired")
	ErrCodeRequired    = errors.New("authorization code is required")
	ErrSessionNotFound = errors.New("session not found")
)

type Config struct {
	OAuth       oauth2.Config
	UserInfoURL string
	TTL         time.Duration
	// HTTPClient is used for the token exchange and userinfo calls when set.
	HTTPClient *http.Client
}

type Service struct {
	cache ports.Cache
	cfg   Config
	now   func() time.Time
}

func NewService(cache ports.Cache, cfg Config) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 8 * time.Hour
	}
	return &Service{cache: cache, cfg: cfg, now: time.Now}
}

// LoginURL starts the authorization code flow with a single-use state.
func (s *Service) LoginURL(ctx context.Context) (string, error) {
	if err := s.check(ctx); err != nil {
		return "", err
	}

	state := uuid.NewString()
	if err := s.cache.Set(ctx, stateKeyPrefix+state, "1", stateTTL); err != nil {
		return "", errs.Wrap(err, "store login state")
	}
	return s.cfg.OAuth.AuthCodeURL(state), nil
}

// Complete finishes the code flow and stores a new session.
func (s *Service) Complete(ctx context.Context, code string, state string) (Session, error) {
	if err := s.check(ctx); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(code) == "" {
		return Session{}, ErrCodeRequired
	}

	state = strings.TrimSpace(state)
	if state == "" {
		return Session{}, ErrInvalidState
	}
	_, found, err := s.cache.Get(ctx, stateKeyPrefix+state)
	if err != nil {
		return Session{}, errs.Wrap(err, "load login state")
	}
	if !found {
		return Session{}, ErrInvalidState
	}
	if err := s.cache.Delete(ctx, stateKeyPrefix+state); err != nil {
		return Session{}, errs.Wrap(err, "consume login state")
	}

	exchangeCtx := ctx
	if s.cfg.HTTPClient != nil {
		exchangeCtx = context.WithValue(ctx, oauth2.HTTPClient, s.cfg.HTTPClient)
	}

	token, err := s.cfg.OAuth.Exchange(exchangeCtx, code)
	if err != nil {
		return Session{}, errs.WithStack(errs.Wrap(err, "exchange authorization code"))
	}

	claims, err := s.fetchUserInfo(exchangeCtx, token)
	if err != nil {
		return Session{}, err
	}

	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		Subject:   claims.Subject,
		Email:     claims.Email,
		Name:      firstNonEmpty(claims.Name, claims.Username),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.TTL),
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return Session{}, errs.Wrap(err, "encode session")
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+sess.ID, string(payload), s.cfg.TTL); err != nil {
		return Session{}, errs.Wrap(err, "store session")
	}

	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.session")), "session started", slog.String("user", sess.DisplayName()))
	return sess, nil
}

func (s *Service) Load(ctx context.Context, id string) (Session, error) {
	if err := s.check(ctx); err != nil {
		return Session{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return Session{}, ErrSessionNotFound
	}

	raw, found, err := s.cache.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return Session{}, errs.Wrap(err, "load session")
	}
	if !found {
		return Session{}, ErrSessionNotFound
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return Session{}, errs.Wrap(err, "decode session")
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *Service) End(ctx context.Context, id string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, sessionKeyPrefix+strings.TrimSpace(id)); err != nil {
		return errs.Wrap(err, "delete session")
	}
	return nil
}

func (s *Service) TTL() time.Duration {
	return s.cfg.TTL
}

type userInfo struct {
	Subject  string `json:"sub"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

func (s *Service) fetchUserInfo(ctx context.Context, token *oauth2.Token) (userInfo, error) {
	if strings.TrimSpace(s.cfg.UserInfoURL) == "" {
		return userInfo{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UserInfoURL, nil)
	if err != nil {
		return userInfo{}, errs.Wrap(err, "build userinfo request")
	}

	resp, err := s.cfg.OAuth.Client(ctx, token).Do(req)
	if err != nil {
		return userInfo{}, errs.WithStack(errs.Wrap(err, "call userinfo"))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return userInfo{}, fmt.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var claims userInfo
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return userInfo{}, errs.Wrap(err, "decode userinfo")
	}
	return claims, nil
}

func (s *Service) check(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.cache == nil {
		return errors.New("session cache is required")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
