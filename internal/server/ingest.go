package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bryan-buckman/pushfeed/internal/linkheader"
	"github.com/bryan-buckman/pushfeed/internal/logger"
	"github.com/bryan-buckman/pushfeed/internal/model"
	"github.com/bryan-buckman/pushfeed/internal/rss"
	"go.uber.org/zap"
)

// handleChallenge accepts every subscription by echoing hub.challenge.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, r.URL.Query().Get("hub.challenge"))
}

// handleIngest stores the entries of one pushed feed document. Nothing is
// written unless the whole document parses.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logger.L.With(zap.String("delivery", s.newID()))

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warnf("Post body exceeds %d bytes", tooLarge.Limit)
			http.Error(w, "Body too large", http.StatusRequestEntityTooLarge)
			return
		}
		log.Errorf("Read body: %v", err)
		http.Error(w, "Read error", http.StatusInternalServerError)
		return
	}

	body, err := rss.FoldASCII(raw)
	if err != nil {
		log.Errorf("Rejected body: %v", err)
		http.Error(w, "Body is not UTF-8", http.StatusInternalServerError)
		return
	}
	log.Infof("Post body is %d characters", len(body))
	topic, _ := linkheader.SelfLinkFromHeader(r.Header)

	doc, err := rss.Parse(body)
	if err != nil {
		logMalformed(log, err)
		http.Error(w, "Malformed feed", http.StatusInternalServerError)
		return
	}

	callback := strings.TrimPrefix(r.URL.Path, s.opts.Prefix)
	updated := s.now()
	log.Infof("Found %d entries", len(doc.Entries))

	updates := make([]model.TopicUpdate, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		n := rss.Normalize(entry)
		log.Debugf("Found entry in topic = %q with title = %q, id = %q, link = %q, content = %q",
			topic, n.Title, n.EntryID, n.Link, n.Content)
		updates = append(updates, model.TopicUpdate{
			Key:      rss.UpdateKey(n.Link, n.EntryID),
			Topic:    topic,
			Title:    n.Title,
			Content:  n.Content,
			Link:     n.Link,
			Callback: callback,
			Updated:  updated,
		})
	}

	if err := s.db.PutUpdates(r.Context(), updates); err != nil {
		log.Errorf("Store updates: %v", err)
		http.Error(w, "Store error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "Aight.  Saved.")
}

func logMalformed(log *zap.SugaredLogger, err error) {
	var merr *rss.MalformedError
	if !errors.As(err, &merr) {
		log.Errorf("Malformed feed data. %T: %v", err, err)
		return
	}
	log.Errorf("Malformed feed data. %T: %v", merr.Err, merr.Err)
	if merr.Line > 0 {
		log.Errorf("Line %d: %v", merr.Line, merr.Err)
		log.Infof("Body segment with error: %q", merr.Segment)
	}
}
