package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotkit/internal/auth"
	"github.com/desertthunder/spotkit/internal/shared"
	"github.com/google/uuid"
)

// CallbackPath is where the accounts service redirects after the user grants access.
const CallbackPath = "/callback"

// CodeExchanger trades an authorization code for the initial credential. Implemented by [auth.OAuthExchanger].
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (auth.Credential, error)
}

// OAuthResult is what the callback produced: a credential or the reason there is none.
type OAuthResult struct {
	Credential auth.Credential
	err        error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect of the authorization code flow. Only the first callback counts;
// later hits are rejected so a replayed URL cannot overwrite the result.
type OAuthHandler struct {
	exchanger CodeExchanger
	state     string
	results   chan OAuthResult
	once      sync.Once
	handled   atomic.Bool
	logger    *log.Logger
}

// NewState returns a random state token for an authorization request.
func NewState() string {
	return uuid.NewString()
}

// NewOAuthHandler creates a handler that accepts only callbacks carrying state.
func NewOAuthHandler(exchanger CodeExchanger, state string, logger *log.Logger) *OAuthHandler {
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		results:   make(chan OAuthResult, 1),
		logger:    shared.WithLogger(logger, "component", "oauth"),
	}
}

// State returns the state token the handler expects.
func (h *OAuthHandler) State() string {
	return h.state
}

func (h *OAuthHandler) Routes() []string {
	return []string{http.MethodGet + " " + CallbackPath}
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.handled.CompareAndSwap(false, true) {
		http.Error(w, "callback was already handled", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.logger.Warn("callback state mismatch")
		h.fail(w, http.StatusBadRequest, fmt.Errorf("%w: state mismatch", shared.ErrAuthFailed))
		return
	}

	code := q.Get("code")
	if code == "" {
		reason := q.Get("error")
		if desc := q.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		h.fail(w, http.StatusBadRequest, fmt.Errorf("%w: access was not granted (%s)", shared.ErrAuthFailed, reason))
		return
	}

	cred, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, fmt.Errorf("code exchange: %w", err))
		return
	}

	h.logger.Info("authorization code exchanged", "scopes", cred.Scopes.String())
	h.Send(OAuthResult{Credential: cred})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, status int, err error) {
	h.Send(OAuthResult{err: err})
	http.Error(w, err.Error(), status)
}

// Send delivers result unless one was already delivered, then closes the channel.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result yields exactly one [OAuthResult].
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

const successPage = `<!doctype html>
<meta charset="utf-8">
<title>spotkit</title>
<body style="font-family: system-ui, sans-serif; text-align: center; margin-top: 20vh">
<h1 style="color: #1DB954">spotkit is authorized</h1>
<p>Return to the terminal; this tab can be closed.</p>
</body>
`
