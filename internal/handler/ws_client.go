package handler

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

const outboxSize = 256

// wsClient owns the write side of a connection. Frames from the read loop,
// the countdown and the monitor are queued and written by one goroutine,
// since gorilla connections allow a single concurrent writer.
type wsClient struct {
	conn *websocket.Conn
	log  zerolog.Logger

	out  chan any
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newWSClient(conn *websocket.Conn, log zerolog.Logger) *wsClient {
	cl := &wsClient{
		conn: conn,
		log:  log,
		out:  make(chan any, outboxSize),
		done: make(chan struct{}),
	}
	cl.wg.Add(1)
	go cl.writeLoop()
	return cl
}

// send queues a frame. Ticks are dropped when the client lags behind; other
// frames wait for room.
func (cl *wsClient) send(frame any) {
	if _, tick := frame.(ws.TickResponse); tick {
		select {
		case cl.out <- frame:
		case <-cl.done:
		default:
		}
		return
	}
	select {
	case cl.out <- frame:
	case <-cl.done:
	}
}

func (cl *wsClient) writeLoop() {
	defer cl.wg.Done()
	for {
		select {
		case frame := <-cl.out:
			if err := ws.WriteTyped(cl.conn, frame); err != nil {
				cl.log.Debug().Err(err).Msg("Write failed, closing connection")
				cl.shutdown()
				return
			}
		case <-cl.done:
			cl.drain()
			return
		}
	}
}

// drain writes frames that were queued before close, such as a final result.
func (cl *wsClient) drain() {
	for {
		select {
		case frame := <-cl.out:
			if ws.WriteTyped(cl.conn, frame) != nil {
				return
			}
		default:
			return
		}
	}
}

// shutdown stops the writer and closes the connection, which unblocks the
// read loop. Safe to call repeatedly and from any goroutine.
func (cl *wsClient) shutdown() {
	cl.once.Do(func() {
		close(cl.done)
		go func() {
			cl.wg.Wait()
			cl.conn.Close()
		}()
	})
}

// close flushes queued frames and waits for the writer to exit.
func (cl *wsClient) close() {
	cl.shutdown()
	cl.wg.Wait()
}
