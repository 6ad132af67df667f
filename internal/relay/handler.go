package relay

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dgnsrekt/tabvoice/internal/protocol"
	"github.com/dgnsrekt/tabvoice/internal/settings"
)

// SSEHandler streams status-update events. Clients may restrict the stream to
// some tabs with ?tabs=1,2. Each connection first receives the current state
// of every busy tab it is interested in.
func SSEHandler(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		var tabFilter map[settings.TabID]bool
		if q := r.URL.Query().Get("tabs"); q != "" {
			tabFilter = make(map[settings.TabID]bool)
			for _, s := range strings.Split(q, ",") {
				if s = strings.TrimSpace(s); s == "" {
					continue
				}
				id, err := settings.ParseTabID(s)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}
				tabFilter[id] = true
			}
		}
		wanted := func(evt Event) bool {
			return tabFilter == nil || tabFilter[evt.TabID]
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, ch := broker.Subscribe()
		defer broker.Unsubscribe(id)

		for _, evt := range broker.Current() {
			if wanted(evt) {
				writeEvent(w, evt)
			}
		}
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case evt, ok := <-ch:
				if !ok {
					return
				}
				if !wanted(evt) {
					continue
				}
				writeEvent(w, evt)
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, evt Event) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", protocol.TypeStatusUpdate, evt.payload())
}
