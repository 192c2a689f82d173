package pipeline

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// reentrantMutex — мьютекс, который владелец-горутина может захватывать
// повторно. Каждому Lock должен соответствовать Unlock той же горутины.
type reentrantMutex struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner uint64
	depth int
}

func newReentrantMutex() *reentrantMutex {
	m := &reentrantMutex{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Lock захватывает мьютекс, ожидая, пока его отпустит другая горутина.
func (m *reentrantMutex) Lock() {
	id := goroutineID()

	m.mu.Lock()
	defer m.mu.Unlock()

	for m.depth > 0 && m.owner != id {
		m.cond.Wait()
	}
	m.owner = id
	m.depth++
}

// Unlock отпускает один уровень захвата. Вызов не владельцем — panic.
func (m *reentrantMutex) Unlock() {
	id := goroutineID()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.depth == 0 || m.owner != id {
		panic(ErrNotOwner)
	}
	m.depth--
	if m.depth == 0 {
		m.owner = 0
		m.cond.Signal()
	}
}

// HeldByCurrent сообщает, владеет ли мьютексом текущая горутина.
func (m *reentrantMutex) HeldByCurrent() bool {
	id := goroutineID()

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth > 0 && m.owner == id
}

// goroutineID извлекает номер горутины из заголовка стека
// ("goroutine 42 [running]:").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		panic("cannot parse goroutine id: " + err.Error())
	}
	return id
}
