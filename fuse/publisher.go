package fuse

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher publishes announced tag poses to MQTT so downstream consumers
// (robot localization, visualization frontends) can track the map live.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	poses         map[int]*TagPose
	mu            sync.RWMutex
}

// NewPublisher creates a tag pose publisher.
// If client is nil, publishing is disabled (for testing)
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "tagmap"
	}

	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,    // QoS 0 for pose updates (fire and forget)
		retain:        true, // Retain for latest pose
		poses:         make(map[int]*TagPose),
	}
}

// SetPrefix overrides the publish topic prefix.
func (p *Publisher) SetPrefix(prefix string) {
	if prefix != "" {
		p.publishPrefix = prefix
	}
}

// Announce returns a TagAnnounce callback that publishes every announced
// pose. Publish failures are logged, not propagated: the fusion engine must
// not stall on a slow broker.
func (p *Publisher) Announce() TagAnnounce {
	return func(id int, x, y, z, twist, dx, dy, dz float64) {
		pose := TagPose{
			ID: id, X: x, Y: y, Z: z, Twist: twist,
			Dx: dx, Dy: dy, Dz: dz,
			Timestamp: time.Now().Unix(),
		}
		if err := p.PublishPose(pose); err != nil {
			log.Printf("warning: publishing pose for tag %d: %v", id, err)
		}
	}
}

// PublishPose publishes a single tag pose to its individual topic and the
// combined poses topic.
func (p *Publisher) PublishPose(pose TagPose) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	p.mu.Lock()
	stored := pose
	p.poses[pose.ID] = &stored
	p.mu.Unlock()

	// Publish to individual topic: tagmap/tag/{id}
	if err := p.publishIndividual(&pose); err != nil {
		log.Printf("Error publishing pose for tag %d: %v", pose.ID, err)
		return err
	}

	// Publish to combined topic: tagmap/tags
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined poses: %v", err)
		return err
	}

	return nil
}

// publishIndividual publishes one tag pose to its per-tag topic
func (p *Publisher) publishIndividual(pose *TagPose) error {
	topic := fmt.Sprintf("%s/tag/%d", p.publishPrefix, pose.ID)

	payload, err := json.Marshal(pose)
	if err != nil {
		return fmt.Errorf("marshaling pose: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// publishCombined publishes all known tag poses to the combined topic
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	poses := make([]*TagPose, 0, len(p.poses))
	for _, pose := range p.poses {
		poses = append(poses, pose)
	}
	p.mu.RUnlock()

	if len(poses) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/tags", p.publishPrefix)

	message := map[string]interface{}{
		"tags":      poses,
		"timestamp": time.Now().Unix(),
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined poses: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	return nil
}

// GetPose returns the last published pose for a tag
func (p *Publisher) GetPose(id int) (*TagPose, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pose, ok := p.poses[id]
	return pose, ok
}

// GetAllPoses returns all published tag poses
func (p *Publisher) GetAllPoses() map[int]*TagPose {
	p.mu.RLock()
	defer p.mu.RUnlock()

	// Return a copy to avoid race conditions
	poses := make(map[int]*TagPose, len(p.poses))
	for id, pose := range p.poses {
		poseCopy := *pose
		poses[id] = &poseCopy
	}
	return poses
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
