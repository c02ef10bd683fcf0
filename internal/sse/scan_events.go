package sse

import (
	"context"
	"sync"

	"ms-attendance/internal/models"
)

// ScanEventEmitter fans confirmed scans out to connected dashboard clients
// over SSE. Subscriptions are removed when the client's context ends.
type ScanEventEmitter struct {
	clients     []chan models.ScanLog
	clientMutex sync.RWMutex
}

func NewScanEventEmitter() *ScanEventEmitter {
	return &ScanEventEmitter{}
}

// Subscribe registers a dashboard client and returns its event channel.
func (e *ScanEventEmitter) Subscribe(ctx context.Context) chan models.ScanLog {
	clientChan := make(chan models.ScanLog, 10)

	e.clientMutex.Lock()
	e.clients = append(e.clients, clientChan)
	e.clientMutex.Unlock()

	go func() {
		<-ctx.Done()
		e.remove(clientChan)
	}()

	return clientChan
}

// Emit broadcasts a confirmed scan to every subscriber. Slow clients are
// skipped rather than blocking the feed.
func (e *ScanEventEmitter) Emit(log models.ScanLog) {
	e.clientMutex.RLock()
	defer e.clientMutex.RUnlock()

	for _, clientChan := range e.clients {
		select {
		case clientChan <- log:
		default:
		}
	}
}

func (e *ScanEventEmitter) remove(clientChan chan models.ScanLog) {
	e.clientMutex.Lock()
	defer e.clientMutex.Unlock()

	for i, c := range e.clients {
		if c == clientChan {
			e.clients = append(e.clients[:i], e.clients[i+1:]...)
			close(c)
			return
		}
	}
}
