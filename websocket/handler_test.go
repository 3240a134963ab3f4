package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/tilestream/traverse"
	"github.com/aukilabs/tilestream/viewer"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type testSource struct {
	mutex    sync.Mutex
	nextID   int
	handlers map[int]func(viewer.FrameStats)
}

func newTestSource() *testSource {
	return &testSource{
		handlers: make(map[int]func(viewer.FrameStats)),
	}
}

func (s *testSource) HandleFrame(h func(viewer.FrameStats)) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	id := s.nextID
	s.nextID++
	s.handlers[id] = h

	return func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		delete(s.handlers, id)
	}
}

func (s *testSource) count() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.handlers)
}

func (s *testSource) emit(frame uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, h := range s.handlers {
		h(viewer.FrameStats{
			Stats: traverse.Stats{
				Frame: frame,
				Used:  3,
			},
			SessionID: "session",
			Tiles:     5,
		})
	}
}

func newTestServer(t *testing.T, src FrameSource, every int) *websocket.Conn {
	server := httptest.NewServer(websocket.Server{
		Handler: func(conn *websocket.Conn) {
			Handle(context.Background(), conn, src, every)
		},
	})
	t.Cleanup(server.Close)

	conn, err := websocket.Dial(
		strings.ReplaceAll(server.URL, "http://", "ws://"),
		"",
		"http://localhost",
	)
	require.NoError(t, err)
	return conn
}

func receiveFrame(t *testing.T, conn *websocket.Conn) *structpb.Struct {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	var data []byte
	require.NoError(t, websocket.Message.Receive(conn, &data))

	var msg structpb.Struct
	require.NoError(t, proto.Unmarshal(data, &msg))
	return &msg
}

func TestHandle(t *testing.T) {
	src := newTestSource()
	conn := newTestServer(t, src, 1)

	require.Eventually(t, func() bool {
		return src.count() == 1
	}, time.Second, time.Millisecond*5)

	src.emit(7)
	msg := receiveFrame(t, conn)
	require.Equal(t, float64(7), msg.Fields["frame"].GetNumberValue())
	require.Equal(t, float64(3), msg.Fields["used"].GetNumberValue())
	require.Equal(t, float64(5), msg.Fields["tiles"].GetNumberValue())
	require.Equal(t, "session", msg.Fields["session_id"].GetStringValue())

	conn.Close()
	require.Eventually(t, func() bool {
		return src.count() == 0
	}, time.Second, time.Millisecond*5)
}

func TestHandleEveryNthFrame(t *testing.T) {
	src := newTestSource()
	conn := newTestServer(t, src, 2)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return src.count() == 1
	}, time.Second, time.Millisecond*5)

	for i := uint64(1); i <= 4; i++ {
		src.emit(i)
	}

	require.Equal(t, float64(2), receiveFrame(t, conn).Fields["frame"].GetNumberValue())
	require.Equal(t, float64(4), receiveFrame(t, conn).Fields["frame"].GetNumberValue())
}

func TestEncodeFrame(t *testing.T) {
	msg, err := EncodeFrame(viewer.FrameStats{
		Stats: traverse.Stats{
			Frame:           1,
			Duration:        time.Millisecond,
			DurationSeconds: time.Millisecond.Seconds(),
		},
		Evicted: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 0.001, msg.Fields["duration_seconds"].GetNumberValue())
	require.NotContains(t, msg.Fields, "duration")
	require.Equal(t, float64(2), msg.Fields["evicted"].GetNumberValue())
}
