// Package influxdb writes DMX output telemetry to InfluxDB.
//
// It wraps influxdb-client-go v2 with connection checks, a batched
// non-blocking write API and two measurements:
//
//	dmx_output     tags universe, timing_mode; engine counters as fields
//	rdm_discovery  tags universe, event; uid field
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	client.WriteOutputSample(sample)
package influxdb
