package ws

import (
	"errors"
	"sync"
)

var (
	ErrMissingProvider = errors.New("не указан providerId")
	ErrSlowConsumer    = errors.New("буфер отправки клиента переполнен")
	ErrClosed          = errors.New("соединение закрыто")
)

// Conn: живое соединение, которому можно отправить сообщение.
type Conn interface {
	ID() string
	Send(msg []byte) error
	Close() error
}

// Hub хранит подключения клиентов, сгруппированные по providerID.
type Hub struct {
	mu sync.RWMutex
	// Для каждого мастера храним множество подключений.
	clients map[string]map[Conn]struct{}
	// Обратный индекс: к какому мастеру привязано соединение.
	providers map[Conn]string
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]map[Conn]struct{}),
		providers: make(map[Conn]string),
	}
}

// Register привязывает соединение к мастеру. Без providerID соединение закрывается.
func (h *Hub) Register(conn Conn, providerID string) error {
	if providerID == "" {
		_ = conn.Close()
		return ErrMissingProvider
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.providers[conn]; ok {
		h.removeLocked(conn, prev)
	}
	if h.clients[providerID] == nil {
		h.clients[providerID] = make(map[Conn]struct{})
	}
	h.clients[providerID][conn] = struct{}{}
	h.providers[conn] = providerID
	return nil
}

// Unregister можно вызывать повторно.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if providerID, ok := h.providers[conn]; ok {
		h.removeLocked(conn, providerID)
	}
}

func (h *Hub) removeLocked(conn Conn, providerID string) {
	delete(h.providers, conn)
	if clients, ok := h.clients[providerID]; ok {
		delete(clients, conn)
		if len(clients) == 0 {
			delete(h.clients, providerID)
		}
	}
}

// ConnectionsFor возвращает копию множества, её можно обходить без блокировки хаба.
func (h *Hub) ConnectionsFor(providerID string) []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Conn, 0, len(h.clients[providerID]))
	for c := range h.clients[providerID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.providers)
}

// CloseAll закрывает все соединения при остановке сервера.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]Conn, 0, len(h.providers))
	for c := range h.providers {
		conns = append(conns, c)
	}
	h.clients = make(map[string]map[Conn]struct{})
	h.providers = make(map[Conn]string)
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
