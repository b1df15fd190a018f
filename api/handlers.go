package api

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/ai"
	"kanban-api/domain"
)

// maxBodySize bounds request bodies; a full board with 500 maximum-size
// cards stays well under it.
const maxBodySize = 8 << 20

// Config carries handler-level settings resolved at startup.
type Config struct {
	Username      string
	Password      string
	SecureCookies bool
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, gateway Gateway, sessions SessionStore, aiLimiter, loginLimiter RateLimiter, parser *ai.Parser, cfg Config, logger *log.Logger) {
	e.GET("/api/health", health())
	e.GET("/healthz", health())
	e.GET("/api/auth/status", authStatus(sessions))
	e.POST("/api/auth/login", login(sessions, loginLimiter, cfg, logger))
	e.POST("/api/auth/logout", logout(sessions, cfg))
	e.GET("/api/board", getBoard(store, sessions))
	e.PUT("/api/board", putBoard(store, sessions))
	e.POST("/api/ai/board", aiBoard(store, gateway, sessions, aiLimiter, parser, logger))
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type authStatusResponse struct {
	Authenticated bool `json:"authenticated"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type aiBoardRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type aiBoardResponse struct {
	SchemaVersion    int                `json:"schemaVersion"`
	Operations       []domain.Operation `json:"operations"`
	Board            domain.Board       `json:"board"`
	AssistantMessage string             `json:"assistantMessage,omitempty"`
}

func decodeJSONBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, maxBodySize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func sessionToken(c echo.Context) string {
	cookie, err := c.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func sessionCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secure,
	}
}

func expiredSessionCookie(secure bool) *http.Cookie {
	cookie := sessionCookie("", secure)
	cookie.MaxAge = -1
	return cookie
}

func health() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
	}
}

func authStatus(sessions SessionStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, err := sessions.Valid(c.Request().Context(), sessionToken(c))
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		return c.JSON(http.StatusOK, authStatusResponse{Authenticated: ok})
	}
}

func login(sessions SessionStore, limiter RateLimiter, cfg Config, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		allowed, err := limiter.Allow(ctx, c.RealIP())
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		if !allowed {
			return c.JSON(http.StatusTooManyRequests, errorResponse{Detail: "rate_limit_exceeded"})
		}

		var body loginRequest
		if err := decodeJSONBody(c, &body); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "invalid_body"})
		}

		if cfg.Username == "" || cfg.Password == "" {
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "server_misconfigured"})
		}

		userOK := subtle.ConstantTimeCompare([]byte(body.Username), []byte(cfg.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(body.Password), []byte(cfg.Password)) == 1
		if !userOK || !passOK {
			logger.WithField("username", body.Username).Warn("login failed: invalid credentials")
			return c.JSON(http.StatusUnauthorized, errorResponse{Detail: "invalid_credentials"})
		}

		token, err := sessions.Create(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}

		c.SetCookie(sessionCookie(token, cfg.SecureCookies))
		logger.WithField("username", body.Username).Info("login: session created")
		return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
	}
}

func logout(sessions SessionStore, cfg Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		if token := sessionToken(c); token != "" {
			if err := sessions.Invalidate(c.Request().Context(), token); err != nil {
				c.Logger().Error(err)
				return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
			}
		}
		c.SetCookie(expiredSessionCookie(cfg.SecureCookies))
		return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
	}
}

func getBoard(store Storage, sessions SessionStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ok, err := sessions.Valid(ctx, sessionToken(c))
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, errorResponse{Detail: "unauthorized"})
		}

		board, err := store.FetchBoard(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		return c.JSON(http.StatusOK, board)
	}
}

func putBoard(store Storage, sessions SessionStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		ok, err := sessions.Valid(ctx, sessionToken(c))
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, errorResponse{Detail: "unauthorized"})
		}

		var board domain.Board
		if err := decodeJSONBody(c, &board); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "invalid_body"})
		}
		if err := board.ValidateShape(); err != nil {
			return c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: err.Error()})
		}

		columns, cards, err := domain.BuildWriteSet(board)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid_board"})
		}

		if err := store.ReplaceBoard(ctx, columns, cards); err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		persisted, err := store.FetchBoard(ctx)
		if err != nil {
			c.Logger().Error(err)
			return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
		}
		return c.JSON(http.StatusOK, persisted)
	}
}

func aiBoard(store Storage, gateway Gateway, sessions SessionStore, limiter RateLimiter, parser *ai.Parser, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newAIRequestMetrics(ctx, logger)
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		token := sessionToken(c)
		ok, authErr := sessions.Valid(ctx, token)
		if authErr != nil {
			metrics.SetErrorStage("auth")
			c.Logger().Error(authErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
			return err
		}
		if !ok {
			metrics.SetErrorStage("auth")
			err = c.JSON(http.StatusUnauthorized, errorResponse{Detail: "unauthorized"})
			return err
		}

		var body aiBoardRequest
		if decodeErr := decodeJSONBody(c, &body); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "invalid_body"})
			return err
		}
		if len(body.Messages) == 0 {
			metrics.SetErrorStage("missing_messages")
			err = c.JSON(http.StatusBadRequest, errorResponse{Detail: "missing_messages"})
			return err
		}
		if validateErr := domain.ValidateMessages(body.Messages); validateErr != nil {
			metrics.SetErrorStage("invalid_messages")
			err = c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: validateErr.Error()})
			return err
		}

		fetchStart := time.Now()
		board, fetchErr := store.FetchBoard(ctx)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("fetch")
			c.Logger().Error(fetchErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
			return err
		}

		// Summary requests are answered locally; the gateway is never invoked
		// and nothing is persisted.
		if ai.IsSummaryRequest(body.Messages) {
			metrics.SetSummary(true)
			err = c.JSON(http.StatusOK, aiBoardResponse{
				SchemaVersion:    ai.SchemaVersion,
				Operations:       []domain.Operation{},
				Board:            board,
				AssistantMessage: ai.BuildSummary(board),
			})
			return err
		}

		allowed, limitErr := limiter.Allow(ctx, token)
		if limitErr != nil {
			metrics.SetErrorStage("rate_limiter")
			c.Logger().Error(limitErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
			return err
		}
		if !allowed {
			metrics.SetErrorStage("rate_limited")
			err = c.JSON(http.StatusTooManyRequests, errorResponse{Detail: "rate_limit_exceeded"})
			return err
		}

		systemPrompt, promptErr := ai.BuildSystemPrompt(board)
		if promptErr != nil {
			metrics.SetErrorStage("prompt")
			c.Logger().Error(promptErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
			return err
		}

		gatewayStart := time.Now()
		raw, sendErr := gateway.Send(ctx, ai.BuildConversation(systemPrompt, body.Messages))
		metrics.ObserveGateway(time.Since(gatewayStart))
		if sendErr != nil {
			metrics.SetErrorStage("gateway")
			err = writeAIError(c, sendErr)
			return err
		}
		metrics.SetRawSize(len(raw))

		parseStart := time.Now()
		parsed, parseErr := parser.Parse(raw)
		metrics.ObserveParse(time.Since(parseStart))
		if parseErr != nil {
			metrics.SetErrorStage("parse")
			err = writeAIError(c, parseErr)
			return err
		}

		columns, cards, reconcileErr := domain.BuildWriteSet(parsed.Board)
		if reconcileErr != nil {
			metrics.SetErrorStage("reconcile")
			err = c.JSON(http.StatusBadRequest, errorResponse{Detail: "invalid_board"})
			return err
		}

		persistStart := time.Now()
		replaceErr := store.ReplaceBoard(ctx, columns, cards)
		if replaceErr == nil {
			board, replaceErr = store.FetchBoard(ctx)
		}
		metrics.ObservePersist(time.Since(persistStart))
		if replaceErr != nil {
			metrics.SetErrorStage("persist")
			c.Logger().Error(replaceErr)
			err = c.JSON(http.StatusInternalServerError, errorResponse{Detail: "internal_error"})
			return err
		}

		metrics.SetOperations(len(parsed.Operations))
		err = c.JSON(http.StatusOK, aiBoardResponse{
			SchemaVersion:    parsed.SchemaVersion,
			Operations:       parsed.Operations,
			Board:            board,
			AssistantMessage: parsed.AssistantMessage,
		})
		return err
	}
}

// writeAIError maps gateway and parser failures to their external detail
// codes. The offending payload itself is only ever logged, never returned.
func writeAIError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "missing_openrouter_key"})
	case errors.Is(err, ai.ErrEmptyResponse):
		return c.JSON(http.StatusBadGateway, errorResponse{Detail: "openrouter_empty_response"})
	case errors.Is(err, ai.ErrInvalidJSON):
		return c.JSON(http.StatusBadGateway, errorResponse{Detail: "openrouter_invalid_json"})
	case errors.Is(err, ai.ErrSchemaVersionMismatch):
		return c.JSON(http.StatusBadGateway, errorResponse{Detail: "openrouter_schema_version_mismatch"})
	case errors.Is(err, ai.ErrMissingBoard),
		errors.Is(err, ai.ErrMissingColumns),
		errors.Is(err, ai.ErrMissingCards),
		errors.Is(err, ai.ErrCardIDMismatch),
		errors.Is(err, ai.ErrDanglingCardRef),
		errors.Is(err, ai.ErrInvalidSchema):
		return c.JSON(http.StatusBadGateway, errorResponse{Detail: "openrouter_invalid_schema"})
	}

	var upstream *ai.UpstreamError
	if errors.As(err, &upstream) {
		return c.JSON(http.StatusBadGateway, errorResponse{Detail: fmt.Sprintf("openrouter_error:%d", upstream.Status)})
	}
	return c.JSON(http.StatusBadGateway, errorResponse{Detail: "openrouter_error"})
}
