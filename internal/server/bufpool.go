package server

import "sync"

// Каждый запрос клиента помещается в один TCP-сегмент, поэтому буфера
// фиксированного размера хватает на любую команду.
const frameBufSize = 256

// BytePool — пул переиспользуемых буферов чтения для сессий.
// Снижает давление на GC: буфер живёт столько же, сколько соединение.
type BytePool struct {
	pool sync.Pool
}

// NewBytePool создаёт пул буферов размера frameBufSize.
func NewBytePool() *BytePool {
	p := &BytePool{}
	p.pool.New = func() any {
		return make([]byte, frameBufSize)
	}
	return p
}

// Get возвращает буфер, по возможности из пула.
func (p *BytePool) Get() []byte {
	return p.pool.Get().([]byte)
}

// Put возвращает буфер в пул.
func (p *BytePool) Put(b []byte) {
	if cap(b) < frameBufSize {
		return
	}
	p.pool.Put(b[:frameBufSize])
}
