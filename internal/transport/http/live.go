package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"subquestion-challenge-service/internal/app"
	"subquestion-challenge-service/internal/domain"
)

type liveFeed struct {
	dispatcher *app.Dispatcher
	hub        *app.ProgressHub
	log        *zap.Logger
	upgrader   websocket.Upgrader
}

func newLiveFeed(dispatcher *app.Dispatcher, hub *app.ProgressHub, log *zap.Logger) *liveFeed {
	return &liveFeed{
		dispatcher: dispatcher,
		hub:        hub,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const writeWait = 10 * time.Second

// serve streams progress events of one challenge to an admin over a websocket. The feed is
// write-only; inbound frames are read and discarded so that close frames are noticed.
func (f *liveFeed) serve(w http.ResponseWriter, r *http.Request) {
	if f.hub == nil {
		writeFailure(w, http.StatusServiceUnavailable, "live feed disabled")
		return
	}
	id, err := challengeID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	ct, err := f.dispatcher.Resolve(r.Context(), id)
	if err != nil {
		writeServiceError(f.log, w, r, err)
		return
	}
	if ct.ID() != domain.SubQuestionType {
		writeFailure(w, http.StatusBadRequest, "This challenge is not a subquestion challenge, it is: "+ct.ID())
		return
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := f.hub.Subscribe(id)
	defer cancel()

	closed := make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(outboundMessage{Type: "progress", Payload: ev}); err != nil {
					f.log.Debug("ws write failed", zap.Int64("challenge_id", id), zap.Error(err))
					return
				}
			case <-closed:
				return
			}
		}
	}()

	f.log.Debug("live feed attached", zap.Int64("challenge_id", id))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	close(closed)
	<-writerDone
	f.log.Debug("live feed detached", zap.Int64("challenge_id", id))
}
