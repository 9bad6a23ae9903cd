package launcher

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Stopper asks the advertised server to exit and forgets it.
type Stopper struct {
	store  *StateStore
	client *http.Client
	logger *logrus.Entry
}

// NewStopper returns a Stopper; nil client and logger get defaults.
func NewStopper(store *StateStore, client *http.Client, logger *logrus.Entry) *Stopper {
	if client == nil {
		client = &http.Client{Timeout: DefaultProbeTimeout}
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = logrus.NewEntry(l)
	}
	return &Stopper{store: store, client: client, logger: logger}
}

// Shutdown is a no-op without state. Otherwise it posts to /admin/shutdown
// (failures are logged and ignored) and deletes the state file regardless.
func (s *Stopper) Shutdown(ctx context.Context) error {
	st := s.store.Read()
	if st == nil {
		return nil
	}

	s.requestShutdown(ctx, st)

	if err := s.store.Delete(); err != nil {
		return fmt.Errorf("remove state file: %w", err)
	}
	return nil
}

func (s *Stopper) requestShutdown(ctx context.Context, st *ServerState) {
	log := s.logger.WithFields(logrus.Fields{"baseURL": st.BaseURL, "pid": st.PID})

	endpoint, err := endpointURL(st.BaseURL, "/admin/shutdown")
	if err != nil {
		log.WithError(err).Debug("shutdown skipped")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		log.WithError(err).Debug("shutdown skipped")
		return
	}
	if st.Token != "" {
		req.Header.Set("Authorization", "Bearer "+st.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		log.WithError(err).Debug("shutdown request failed")
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	log.WithField("status", resp.StatusCode).Info("shutdown requested")
}
