// Package websocket streams viewer frame stats to WebSocket clients.
package websocket

import (
	"context"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/tilestream/viewer"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ErrTypeEncodeFrame = "encode_frame"

	sendChanSize = 16
)

// FrameSource publishes the stats of every frame.
type FrameSource interface {
	HandleFrame(h func(viewer.FrameStats)) (cancel func())
}

// Handle streams the frames of the given source to the connection until the
// client disconnects or the context is canceled. Only every nth frame is sent
// when every is greater than 1.
func Handle(ctx context.Context, conn *websocket.Conn, src FrameSource, every int) {
	if every <= 0 {
		every = 1
	}

	h := handler{
		Conn:   conn,
		Source: src,
		Every:  every,
	}

	h.Handle(ctx)
}

type handler struct {
	// The WebSocket connection.
	Conn *websocket.Conn

	Source FrameSource
	Every  int

	frames         int
	sendChan       chan viewer.FrameStats
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	remoteAddr := h.remoteAddr()
	logs.WithTag("remote_addr", remoteAddr).Info("new client is connected")
	instrumentConnect()

	h.disconnectChan = make(chan error, 4)
	h.sendChan = make(chan viewer.FrameStats, sendChanSize)

	stopFrameHandling := h.Source.HandleFrame(h.handleFrame)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()

	case err = <-h.disconnectChan:
	}

	stopFrameHandling()
	cancel()
	h.Conn.Close()
	wg.Wait()

	instrumentDisconnect()
	logs.WithTag("remote_addr", remoteAddr).
		WithTag("reason", err.Error()).
		Info("client is disconnected")
}

// handleFrame runs on the viewer frame loop. Frames are dropped when the
// client is too slow to keep up.
func (h *handler) handleFrame(s viewer.FrameStats) {
	h.frames++
	if h.frames%h.Every != 0 {
		return
	}

	select {
	case h.sendChan <- s:
	default:
		instrumentDroppedFrame()
	}
}

func (h *handler) startSending(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.sendChan:
			msg, err := EncodeFrame(s)
			if err != nil {
				logs.WithTag("frame", s.Frame).Debug(err)
				continue
			}

			data, err := proto.Marshal(msg)
			if err != nil {
				logs.WithTag("frame", s.Frame).Debug(err)
				continue
			}

			if err := websocket.Message.Send(h.Conn, data); err != nil {
				err = errors.New("sending frame failed").Wrap(err)
				instrumentSendError(err)
				h.disconnect(err)
				return
			}
			instrumentSent(len(data))
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		default:
			var data []byte
			if err := websocket.Message.Receive(h.Conn, &data); err != nil {
				h.disconnect(errors.New("receiving message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) remoteAddr() string {
	if req := h.Conn.Request(); req != nil {
		return req.RemoteAddr
	}
	return ""
}

// EncodeFrame converts frame stats to a protobuf struct. Fields are named
// after the stats json names.
func EncodeFrame(s viewer.FrameStats) (*structpb.Struct, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.New("marshaling frame stats failed").
			WithType(ErrTypeEncodeFrame).
			Wrap(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, errors.New("unmarshaling frame stats failed").
			WithType(ErrTypeEncodeFrame).
			Wrap(err)
	}

	msg, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, errors.New("creating frame message failed").
			WithType(ErrTypeEncodeFrame).
			Wrap(err)
	}
	return msg, nil
}
