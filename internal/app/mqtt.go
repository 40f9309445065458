package app

import (
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Messenger is the part of the MQTT client the run loops need. Handlers run
// on the client's goroutine and must not block.
type Messenger interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler func(topic string, payload []byte)) error
}

type mqttMessenger struct {
	client mqtt.Client
}

// clientID appends a short random suffix to base. The broker drops an
// existing session when a second client connects with the same ID, and every
// robot ships with the same default.
func clientID(base string) string {
	return base + "-" + uuid.NewString()[:8]
}

// connectMQTT dials the broker and returns the messenger plus a disconnect
// function for defer.
func connectMQTT(broker, baseID string) (Messenger, func(), error) {
	id := clientID(baseID)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(id).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, nil, fmt.Errorf("MQTT connect %s: %w", broker, token.Error())
	}
	log.Printf("mqtt: connected to %s as %s", broker, id)
	return &mqttMessenger{client: client}, func() { client.Disconnect(250) }, nil
}

func (m *mqttMessenger) Publish(topic string, payload []byte) error {
	if token := m.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("MQTT publish %s: %w", topic, token.Error())
	}
	return nil
}

func (m *mqttMessenger) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	token := m.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("MQTT subscribe %s: %w", topic, token.Error())
	}
	log.Printf("mqtt: subscribed to %s", topic)
	return nil
}
