package fuse

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "tagmap-test",
		},
		Cameras: []CameraConfig{
			{ID: "cam0", Topic: "tagmap/cam0/frames"},
			{ID: "cam1", Topic: "tagmap/cam1/frames"},
		},
	}
}

// frameCollector records frame handler invocations for assertions.
type frameCollector struct {
	mu     sync.Mutex
	frames []*Frame
	errs   []error
	ids    []string
}

func (fc *frameCollector) handler(cameraID string, raw []byte, frame *Frame, err error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.ids = append(fc.ids, cameraID)
	fc.frames = append(fc.frames, frame)
	fc.errs = append(fc.errs, err)
}

func TestMQTTClient_SubscribesCameraTopics(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	collector := &frameCollector{}
	client := newMQTTClientWithMock(mock, testConfig(), collector.handler)
	client.onConnect(mock)

	assert.True(t, client.IsConnected())

	// A frame on cam0's topic reaches the handler decoded.
	mock.SimulateMessage("tagmap/cam0/frames", []byte(sampleFrameJSON))

	collector.mu.Lock()
	defer collector.mu.Unlock()
	require.Len(t, collector.frames, 1)
	assert.Equal(t, "cam0", collector.ids[0])
	assert.NoError(t, collector.errs[0])
	assert.Equal(t, 2, len(collector.frames[0].Tags))
}

func TestMQTTClient_BadFrameReachesHandlerWithError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)

	collector := &frameCollector{}
	client := newMQTTClientWithMock(mock, testConfig(), collector.handler)
	client.onConnect(mock)

	mock.SimulateMessage("tagmap/cam1/frames", []byte{0xde, 0xad})

	collector.mu.Lock()
	defer collector.mu.Unlock()
	require.Len(t, collector.errs, 1)
	assert.Error(t, collector.errs[0])
	assert.Nil(t, collector.frames[0])
	assert.Equal(t, "cam1", collector.ids[0])
}

func TestMQTTClient_GetCameraByTopic(t *testing.T) {
	client := newMQTTClientWithMock(NewMockClient(), testConfig(), nil)

	id, ok := client.GetCameraByTopic("tagmap/cam1/frames")
	assert.True(t, ok)
	assert.Equal(t, "cam1", id)

	_, ok = client.GetCameraByTopic("unknown/topic")
	assert.False(t, ok)
}

func TestMQTTClient_ConnectionStateTracking(t *testing.T) {
	mock := NewMockClient()
	client := newMQTTClientWithMock(mock, testConfig(), nil)

	assert.False(t, client.IsConnected())
	client.setConnected(true)
	assert.True(t, client.IsConnected())
	client.onConnectionLost(mock, assert.AnError)
	assert.False(t, client.IsConnected())
}

func TestMQTTClient_Disconnect(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	client := newMQTTClientWithMock(mock, testConfig(), nil)
	client.setConnected(true)

	client.Disconnect()
	assert.False(t, mock.IsConnected())
	assert.False(t, client.IsConnected())
}

func TestInitMQTT_DisabledWithoutBroker(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")
	config := testConfig()
	config.MQTT.Broker = ""

	client, err := InitMQTT(config, nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitMQTT_RequiresCameras(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")
	config := testConfig()
	config.Cameras = nil

	_, err := InitMQTT(config, nil)
	assert.Error(t, err)
}

func TestMockClient_PublishRequiresConnection(t *testing.T) {
	mock := NewMockClient()
	token := mock.Publish("topic", 0, false, []byte("x"))
	require.True(t, token.WaitTimeout(time.Second))
	assert.Error(t, token.Error())

	mock.SetConnected(true)
	token = mock.Publish("topic", 0, false, []byte("x"))
	assert.NoError(t, token.Error())
	assert.Len(t, mock.GetPublishedMessages(), 1)
}
