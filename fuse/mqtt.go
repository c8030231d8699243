package fuse

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// FrameHandler is called when a detection frame message is received.
// Parameters: cameraID, rawPayload, frame, error.
// rawPayload is provided so callers can archive payloads that fail to decode.
type FrameHandler func(cameraID string, rawPayload []byte, frame *Frame, err error)

// MQTTClient manages the MQTT connection and per-camera detection frame
// subscriptions.
type MQTTClient struct {
	client       mqtt.Client
	config       *Config
	frameHandler FrameHandler
	isConnected  bool
	mu           sync.RWMutex
}

var (
	globalClient *MQTTClient
	clientMu     sync.Mutex
)

// InitMQTT initializes the global MQTT client with the provided configuration.
// If neither the MQTT_BROKER env var nor the config names a broker, MQTT is
// disabled and this returns nil.
func InitMQTT(config *Config, handler FrameHandler) (*MQTTClient, error) {
	clientMu.Lock()
	defer clientMu.Unlock()

	// Check if MQTT is enabled via env var or config
	broker := os.Getenv("MQTT_BROKER")
	if broker == "" && config != nil && config.MQTT.Broker != "" {
		broker = config.MQTT.Broker
	}

	if broker == "" {
		log.Println("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}

	if config == nil || len(config.Cameras) == 0 {
		return nil, fmt.Errorf("MQTT enabled but no camera configuration provided")
	}

	client := &MQTTClient{
		config:       config,
		frameHandler: handler,
	}

	// Build MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	// Client ID
	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" && config.MQTT.ClientID != "" {
		clientID = config.MQTT.ClientID
	}
	if clientID == "" {
		clientID = "tagmap"
	}
	opts.SetClientID(clientID)

	// Authentication
	username := os.Getenv("MQTT_USERNAME")
	if username == "" && config.MQTT.Username != "" {
		username = config.MQTT.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" && config.MQTT.Password != "" {
			password = config.MQTT.Password
		}
		opts.SetPassword(password)
	}

	// Connection settings
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)   // Longer than default 30s to reduce spurious disconnects
	opts.SetPingTimeout(10 * time.Second) // Timeout for ping response
	opts.SetCleanSession(false)           // Preserve subscriptions on reconnect
	opts.SetOrderMatters(false)           // Allow concurrent processing

	// Callbacks
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	// Connect asynchronously with retry
	go client.connectWithRetry()

	globalClient = client
	return client, nil
}

// GetMQTTClient returns the global MQTT client instance
func GetMQTTClient() *MQTTClient {
	clientMu.Lock()
	defer clientMu.Unlock()
	return globalClient
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		log.Println("Connecting to MQTT broker...")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				log.Println("Successfully connected to MQTT broker")
				c.setConnected(true)
				return
			}
			log.Printf("MQTT connection failed: %v", token.Error())
		} else {
			log.Println("MQTT connection timeout")
		}

		// Exponential backoff
		log.Printf("Retrying MQTT connection in %v...", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect is called when the MQTT connection is established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	log.Println("MQTT connected, subscribing to camera topics...")
	c.setConnected(true)

	// Subscribe to all camera topics from config
	for _, camera := range c.config.Cameras {
		if camera.Topic == "" {
			log.Printf("Warning: camera %s has no topic configured", camera.ID)
			continue
		}

		log.Printf("Subscribing to %s for camera %s", camera.Topic, camera.ID)
		token := client.Subscribe(camera.Topic, 0, c.createFrameHandler(camera.ID))

		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			log.Printf("Error subscribing to %s: %v", camera.Topic, token.Error())
		} else {
			log.Printf("Successfully subscribed to %s", camera.Topic)
		}
	}
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	log.Printf("MQTT connection interrupted (%v), auto-reconnect will retry", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Println("MQTT reconnecting...")
}

// createFrameHandler creates a handler function for a specific camera's topic
func (c *MQTTClient) createFrameHandler(cameraID string) mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		payload := msg.Payload()
		log.Printf("Received frame for %s (topic: %s, size: %d bytes)",
			cameraID, msg.Topic(), len(payload))

		// Decode the frame (raw JSON or zlib-compressed JSON)
		frame, err := DecodeFrame(payload)
		if err != nil {
			log.Printf("Error decoding frame for %s: %v", cameraID, err)
			if c.frameHandler != nil {
				// Pass raw payload so caller can archive bad frames
				c.frameHandler(cameraID, payload, nil, err)
			}
			return
		}

		if c.frameHandler != nil {
			c.frameHandler(cameraID, payload, frame, nil)
		}
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		log.Println("Disconnecting from MQTT broker...")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetCameraByTopic returns the camera ID for a given topic
func (c *MQTTClient) GetCameraByTopic(topic string) (string, bool) {
	for _, camera := range c.config.Cameras {
		if camera.Topic == topic {
			return camera.ID, true
		}
	}
	return "", false
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *Config, handler FrameHandler) *MQTTClient {
	return &MQTTClient{
		client:       client,
		config:       config,
		frameHandler: handler,
	}
}
