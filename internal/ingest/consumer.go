package ingest

import (
	"context"

	"github.com/sirupsen/logrus"
)

// HandleMessage ingests one Kafka message holding a listing batch.
func (in *Ingestor) HandleMessage(ctx context.Context, data []byte) {
	listings, err := Decode(data)
	if err != nil {
		logrus.WithError(err).Error("Error unmarshaling listings")
		return
	}
	logrus.WithField("count", len(listings)).Info("Received scraped listings")

	res, err := in.Ingest(ctx, listings)
	if err != nil {
		logrus.WithError(err).Error("Failed to ingest listing batch")
		return
	}
	for _, msg := range res.Errors {
		logrus.WithField("error", msg).Warn("Listing not ingested")
	}
}
