package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"log"

	"github.com/robotalks/odrive.go/pkg/bridge/mqtt"
	"github.com/robotalks/odrive.go/pkg/env"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()

	conf := env.MustLoad()
	e := conf.MustNewEnv(context.Background())
	loop := conf.NewLoop().Add(e)
	if conf.MQTTBrokerURL != "" {
		bridge, err := mqtt.NewBridge(conf.MQTTBrokerURL, mqtt.Meta{
			Device:    conf.ID(),
			Transport: conf.Transport,
			TimeoutMs: conf.Timeout.Milliseconds(),
		}, e.Link)
		if err != nil {
			log.Fatalf("create MQTT bridge error: %v", err)
		}
		bridge.StatsInterval = conf.StatsInterval
		loop.Add(bridge)
	}
	loop.RunOrFail()
}
