// Package delegate executes filesystem operations on behalf of an end user.
//
// A Session binds one impersonated identity (the end user, proxied through
// a service identity) to one filesystem handle. Every operation is an
// Action run through Execute, which applies the impersonation and a bounded
// retry of the transient "Cannot obtain block length" failure:
//
//	s, err := delegate.New(ctx, cfg, "alice")
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	entries, err := s.ListDir(ctx, "/user/alice")
package delegate

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/fsdelegate/internal/logger"
	"github.com/marmos91/fsdelegate/internal/telemetry"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/ugi"
)

const opConnect = "connect"

// Session is an impersonated connection to a filesystem. It is safe for
// concurrent use.
type Session struct {
	id         string
	user       *ugi.User
	fs         fs.FileSystem
	trash      *fs.Trash
	policy     RetryPolicy
	metrics    Metrics
	logContext *logger.LogContext

	// statusMu serializes Status.
	statusMu sync.Mutex
}

// Option customizes a Session.
type Option func(*Session)

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithMetrics attaches an executor metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// New builds a session acting as username.
//
// The security configuration in cfg is installed process-wide on first use.
// The proxy identity is cfg.AuthParams["proxyuser"] when set, otherwise the
// login user, with the authentication method named by
// cfg.AuthParams["auth"] (SIMPLE by default). The filesystem handle is
// obtained through the same impersonated executor as every operation.
func New(ctx context.Context, cfg Config, username string, opts ...Option) (*Session, error) {
	if err := ugi.SetConfiguration(cfg.Security); err != nil {
		return nil, &ConfigurationError{Setting: "security", Err: err}
	}

	realUser, err := proxyIdentity(cfg.AuthParams)
	if err != nil {
		return nil, err
	}

	user, err := ugi.CreateProxyUser(username, realUser)
	if err != nil {
		return nil, &ConfigurationError{Setting: "username", Err: err}
	}

	s := &Session{
		id:     uuid.NewString(),
		user:   user,
		policy: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logContext = logger.NewLogContext(s.id, user.ShortUserName(), realUser.UserName())

	fsys, err := execute(ctx, s, opConnect, func(ctx context.Context, _ fs.FileSystem) (fs.FileSystem, error) {
		fsys, err := fs.Get(ctx, cfg.FileSystem)
		if err != nil {
			return nil, err
		}
		telemetry.SetAttributes(ctx, telemetry.Volume(fsys.URI()))
		return fsys, nil
	},
		telemetry.FSType(cfg.FileSystem.Type),
		telemetry.RealUser(realUser.UserName()),
		telemetry.AuthMethod(realUser.AuthMethod().String()),
	)
	if err != nil {
		if errors.Is(err, fs.ErrUnsupportedType) || errors.Is(err, fs.ErrInvalidOptions) {
			return nil, &ConfigurationError{Setting: "filesystem", Err: err}
		}
		return nil, &ConnectionError{URI: cfg.FileSystem.Type + "://" + cfg.FileSystem.Name, Err: err}
	}

	s.fs = fsys
	s.trash = fs.NewTrash(fsys, cfg.FileSystem.Trash)

	logger.Debug("Delegate session opened",
		logger.KeySessionID, s.id,
		logger.KeyUsername, user.ShortUserName(),
		logger.KeyRealUser, realUser.UserName(),
		logger.KeyAuth, realUser.AuthMethod().String(),
		logger.KeyVolume, fsys.URI())
	return s, nil
}

func proxyIdentity(params map[string]string) (*ugi.User, error) {
	var (
		realUser *ugi.User
		err      error
	)
	if name, ok := params[AuthParamProxyUser]; ok {
		realUser, err = ugi.CreateRemoteUser(name)
	} else {
		realUser, err = ugi.LoginUser()
	}
	if err != nil {
		return nil, &ConfigurationError{Setting: "auth_params." + AuthParamProxyUser, Err: err}
	}

	method := ugi.Simple
	if name, ok := params[AuthParamAuth]; ok {
		method, err = ugi.ParseAuthMethod(name)
		if err != nil {
			return nil, &ConfigurationError{Setting: "auth_params." + AuthParamAuth, Err: err}
		}
	}
	return realUser.WithAuthMethod(method), nil
}

// ID returns the session identifier used in logs and traces.
func (s *Session) ID() string {
	return s.id
}

// User returns the impersonated identity.
func (s *Session) User() *ugi.User {
	return s.user
}

// URI returns scheme://authority of the filesystem.
func (s *Session) URI() string {
	return s.fs.URI()
}

// Close releases the filesystem handle.
func (s *Session) Close() error {
	if s.fs == nil {
		return nil
	}
	return s.fs.Close()
}
