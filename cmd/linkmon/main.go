package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/odrive.go/pkg/bridge/mqtt"
	"github.com/robotalks/odrive.go/pkg/bridge/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/odrive/"
)

func init() {
	if val := os.Getenv("ODRIVE_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

type decoder func([]byte) (interface{ String() string }, error)

var decoders = map[string]decoder{
	mqtt.TopicCmd: func(data []byte) (interface{ String() string }, error) {
		return msgs.DecodeRequest(data)
	},
	mqtt.TopicReply: func(data []byte) (interface{ String() string }, error) {
		return msgs.DecodeReply(data)
	},
	mqtt.TopicStats: func(data []byte) (interface{ String() string }, error) {
		return msgs.DecodeStats(data)
	},
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("#", func(topic string, payload []byte) {
		kind := topic[strings.LastIndex(topic, "/")+1:]
		if kind == mqtt.TopicMeta {
			log.Printf("%s: %s", topic, string(payload))
			return
		}
		decode := decoders[kind]
		if decode == nil {
			log.Printf("%s: %d bytes", topic, len(payload))
			return
		}
		msg, err := decode(payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, msg.String())
	})
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
