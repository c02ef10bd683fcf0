package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-attendance/internal/logger"
	"ms-attendance/internal/models"
)

type Producer struct {
	ScanWriter *kafka.Writer
	ModeWriter *kafka.Writer
	Log        *logger.Logger

	scanTopic string
	modeTopic string
}

func NewProducer(brokers []string, scanTopic, modeTopic string, log *logger.Logger) *Producer {
	return &Producer{
		ScanWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   scanTopic,
		}),
		ModeWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   modeTopic,
		}),
		Log:       log,
		scanTopic: scanTopic,
		modeTopic: modeTopic,
	}
}

// PublishScanEvent streams a confirmed scan to the scan topic. Keyed by
// subject so all events for one badge land on the same partition in order.
func (p *Producer) PublishScanEvent(log models.ScanLog) error {
	msgBytes, err := json.Marshal(log)
	if err != nil {
		return err
	}

	p.Log.LogKafka("PUBLISH", p.scanTopic, fmt.Sprintf("%s for subject %s", log.ScanType, log.SubjectID))

	return p.ScanWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(log.SubjectID),
			Value: msgBytes,
		},
	)
}

// PublishModeUpdated streams a mode change so dashboards pick it up live.
func (p *Producer) PublishModeUpdated(cfg models.SystemModeConfig) error {
	msgBytes, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	p.Log.LogKafka("PUBLISH", p.modeTopic, fmt.Sprintf("mode switched to %s", cfg.Mode))

	return p.ModeWriter.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(cfg.ID),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	if err := p.ScanWriter.Close(); err != nil {
		return err
	}
	return p.ModeWriter.Close()
}
