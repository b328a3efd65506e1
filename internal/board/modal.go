package board

import "github.com/google/uuid"

type ModalKind string

const (
	ModalNone         ModalKind = ""
	ModalApply        ModalKind = "apply"
	ModalApplications ModalKind = "applications"
	ModalDelivery     ModalKind = "delivery"
	ModalReview       ModalKind = "review"
)

type Modal struct {
	Kind          ModalKind
	TaskID        uuid.UUID
	ApplicationID uuid.UUID
}

// ModalHost держит не более одного открытого окна. Каждое открытие или закрытие
// меняет seq, по нему отбрасываются ответы, пришедшие для уже закрытого окна.
type ModalHost struct {
	s       *Session
	current Modal
	seq     uint64
}

func (m *ModalHost) Current() Modal {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.current
}

func (m *ModalHost) IsOpen() bool {
	return m.Current().Kind != ModalNone
}

func (m *ModalHost) Close() {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.closeLocked()
}

func (m *ModalHost) openLocked(modal Modal) uint64 {
	m.current = modal
	m.seq++
	return m.seq
}

func (m *ModalHost) closeLocked() {
	if m.current.Kind == ModalNone {
		return
	}
	m.current = Modal{}
	m.seq++
}

// stillOpenLocked сообщает, что окно, открытое под seq, не закрывалось и не сменялось
func (m *ModalHost) stillOpenLocked(kind ModalKind, seq uint64) bool {
	return m.current.Kind == kind && m.seq == seq
}
