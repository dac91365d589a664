package events

import (
	"context"

	"arledger/internal/platform/config"
	"arledger/internal/platform/store"
	hdom "arledger/internal/services/history/domain"
)

// FromConfig builds the configured sinks
// Kafka when CORE_KAFKA_BROKERS is set, ClickHouse when ch is non nil
// the returned close func releases every sink
func FromConfig(ctx context.Context, cfg config.Conf, ch store.Clickhouse) ([]hdom.Sink, func(), error) {
	var (
		sinks   []hdom.Sink
		closers []func()
	)
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	k := cfg.Prefix("CORE_KAFKA_")
	if brokers := k.MayCSV("BROKERS", nil); len(brokers) > 0 {
		ks, err := NewKafka(KafkaOptions{
			Brokers:  brokers,
			Topic:    k.MayString("TOPIC", "arledger.history"),
			ClientID: k.MayString("CLIENT_ID", "arledger"),
			Timeout:  k.MayDuration("TIMEOUT", 0),
		})
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, ks)
		closers = append(closers, func() { _ = ks.Close() })
	}

	if ch != nil {
		cs, err := NewClickHouse(ch, cfg.MayString("CORE_CH_HISTORY_TABLE", DefaultTable))
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		if err := cs.EnsureTable(ctx); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		sinks = append(sinks, cs)
	}
	return sinks, closeAll, nil
}
