package server

import (
	"encoding/json"
	"net/http"

	"github.com/bryan-buckman/pushfeed/internal/logger"
	"github.com/bryan-buckman/pushfeed/internal/model"
	"github.com/bryan-buckman/pushfeed/internal/opml"
)

// item is the wire form of a TopicUpdate on /items.
type item struct {
	TimeS    int64  `json:"time_s"`
	Topic    string `json:"topic"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Callback string `json:"callback"`
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	q := model.UpdateQuery{
		Limit:    s.opts.Items.Clamp(r.URL.Query().Get("num_entries")),
		Callback: r.URL.Query().Get("callback_filter"),
	}
	updates, err := s.db.QueryUpdates(r.Context(), q)
	if err != nil {
		logger.Errorf("Query updates: %v", err)
		http.Error(w, "Query failed", http.StatusInternalServerError)
		return
	}

	items := make([]item, 0, len(updates))
	for _, u := range updates {
		items = append(items, item{
			TimeS:    u.Updated.Unix(),
			Topic:    u.Topic,
			Title:    u.Title,
			Content:  u.Content,
			Source:   u.Link,
			Callback: u.Callback,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.db.SweepUpdates(r.Context(), s.opts.RetentionKeep)
	if err != nil {
		logger.Errorf("Cleanup after %d deletions: %v", deleted, err)
		http.Error(w, "Cleanup failed", http.StatusInternalServerError)
		return
	}
	logger.Infof("Cleanup kept newest %d, deleted %d", s.opts.RetentionKeep, deleted)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"deleted": deleted,
	})
}

func (s *Server) handleExportOPML(w http.ResponseWriter, r *http.Request) {
	topics, err := s.db.GetTopics(r.Context())
	if err != nil {
		logger.Errorf("Get topics: %v", err)
		http.Error(w, "Failed to get topics", http.StatusInternalServerError)
		return
	}

	data, err := opml.Export("pushfeed topics", s.now(), topics)
	if err != nil {
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("Content-Disposition", "attachment; filename=pushfeed-topics.opml")
	w.Write(data)
}
