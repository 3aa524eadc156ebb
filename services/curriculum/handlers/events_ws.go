// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/CurriculumEngine/pkg/audit"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

const (
	// Per-subscriber buffer. Slow consumers drop events rather than
	// stalling rollout execution.
	eventBuffer = 256

	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// StreamEvents handles GET /v1/events/ws. It upgrades to a WebSocket
// and streams audit events (version transitions, rollout target
// progress, policy updates) as JSON, one event per message.
//
// Dashboards use this to watch rollout progress live. An optional
// "type" query parameter filters to a single event type, e.g.
// ?type=rollout.target.applied.
func StreamEvents(hub *audit.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		typeFilter := c.Query("type")
		events, cancel := hub.Subscribe(eventBuffer)
		defer cancel()
		slog.Info("event stream client connected", "typeFilter", typeFilter)

		// Reader goroutine: the client never sends data, but we must
		// consume control frames to notice a close.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ping := time.NewTicker(wsPingInterval)
		defer ping.Stop()

		for {
			select {
			case <-done:
				slog.Info("event stream client disconnected")
				return
			case <-c.Request.Context().Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if typeFilter != "" && event.Type != typeFilter {
					continue
				}
				ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := ws.WriteJSON(event); err != nil {
					slog.Warn("failed to write event to websocket", "error", err)
					return
				}
			case <-ping.C:
				ws.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}
