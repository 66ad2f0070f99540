package anonymizer

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/alacambra/presidio-anonymization/internal/anonymizer")

var (
	entitiesAnonymized metric.Int64Counter
	entitiesRejected   metric.Int64Counter
	entitiesDeselected metric.Int64Counter
	documentsProcessed metric.Int64Counter
	documentsCancelled metric.Int64Counter
)

func init() {
	var err error
	entitiesAnonymized, err = meter.Int64Counter("anonymizer.entities.anonymized",
		metric.WithDescription("Spans replaced by a placeholder"))
	if err != nil {
		entitiesAnonymized, _ = meter.Int64Counter("anonymizer.entities.anonymized.fallback")
	}

	entitiesRejected, err = meter.Int64Counter("anonymizer.entities.rejected",
		metric.WithDescription("Spans below the confidence threshold"))
	if err != nil {
		entitiesRejected, _ = meter.Int64Counter("anonymizer.entities.rejected.fallback")
	}

	entitiesDeselected, err = meter.Int64Counter("anonymizer.entities.deselected",
		metric.WithDescription("Accepted spans excluded by selection or overlap resolution"))
	if err != nil {
		entitiesDeselected, _ = meter.Int64Counter("anonymizer.entities.deselected.fallback")
	}

	documentsProcessed, err = meter.Int64Counter("anonymizer.documents.processed",
		metric.WithDescription("Completed anonymization sessions"))
	if err != nil {
		documentsProcessed, _ = meter.Int64Counter("anonymizer.documents.processed.fallback")
	}

	documentsCancelled, err = meter.Int64Counter("anonymizer.documents.cancelled",
		metric.WithDescription("Sessions cancelled at the selection step"))
	if err != nil {
		documentsCancelled, _ = meter.Int64Counter("anonymizer.documents.cancelled.fallback")
	}
}

func recordSessionMetrics(ctx context.Context, r *Result) {
	for _, s := range r.Kept {
		entitiesAnonymized.Add(ctx, 1, metric.WithAttributes(attribute.String("entity_type", s.Type)))
	}
	entitiesRejected.Add(ctx, int64(len(r.Rejected)))
	entitiesDeselected.Add(ctx, int64(len(r.Deselected)+len(r.Overlapping)))
	documentsProcessed.Add(ctx, 1)
}
