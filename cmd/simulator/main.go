package main

import (
	"encoding/json"
	"math/rand/v2"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/cenfotec-cedula5/energy-monitor/internal/config"
)

// Reading mirrors what the two-channel ESP32 meter posts.
type Reading struct {
	Ch1Power float64 `json:"ch1_power"`
	Ch2Power float64 `json:"ch2_power"`
	Ch1PF    float64 `json:"ch1_pf"`
	Ch2PF    float64 `json:"ch2_pf"`
	Voltage  float64 `json:"voltage"`
}

func newReading() Reading {
	return Reading{
		Ch1Power: 60 + rand.Float64()*140,
		Ch2Power: 20 + rand.Float64()*100,
		Ch1PF:    0.75 + rand.Float64()*0.25,
		Ch2PF:    0.75 + rand.Float64()*0.25,
		Voltage:  115 + rand.Float64()*10,
	}
}

func main() {
	viper.SetDefault("SIM_TARGET", "http")
	viper.SetDefault("SIM_URL", "http://localhost:5000/datos_esp32")
	viper.SetDefault("SIM_COUNT", 10)
	viper.SetDefault("SIM_INTERVAL", "30s")
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	count := viper.GetInt("SIM_COUNT")
	interval := viper.GetDuration("SIM_INTERVAL")

	var send func(payload []byte) error
	switch target := viper.GetString("SIM_TARGET"); target {
	case "mqtt":
		client := paho.NewClient(paho.NewClientOptions().AddBroker(config.MQTTBroker()).SetClientID("energy-simulator"))
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Fatal().Err(token.Error()).Msg("mqtt connect")
		}
		defer client.Disconnect(250)
		send = func(payload []byte) error {
			token := client.Publish(config.MQTTTopic(), 1, false, payload)
			token.Wait()
			return token.Error()
		}
	case "http":
		url := viper.GetString("SIM_URL")
		send = func(payload []byte) error {
			code, body, errs := fiber.Post(url).
				ContentType(fiber.MIMEApplicationJSON).
				Body(payload).
				Timeout(2 * time.Minute).
				Bytes()
			if len(errs) > 0 {
				return errs[0]
			}
			log.Info().Int("status", code).Str("response", string(body)).Msg("reading submitted")
			return nil
		}
	default:
		log.Fatal().Str("target", target).Msg("SIM_TARGET must be http or mqtt")
	}

	for i := 0; i < count; i++ {
		payload, _ := json.Marshal(newReading())
		if err := send(payload); err != nil {
			log.Error().Err(err).Int("n", i).Msg("send failed")
		}
		if i < count-1 {
			time.Sleep(interval)
		}
	}
	log.Info().Int("readings", count).Msg("simulation done")
}
