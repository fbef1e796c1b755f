// Package mqtt provides the broker connection used by the DMX bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and size checks
//   - Subscriptions that survive reconnects
//   - A retained online/offline status on graylogic/health/dmx, with the
//     offline message registered as Last Will and Testament
//
// # Topics
//
//	graylogic/command/dmx/{universe}     level commands in
//	graylogic/request/dmx/{request_id}   RDM requests in
//	graylogic/response/dmx/{request_id}  RDM replies out
//	graylogic/discovery/dmx/command      discovery operations in
//	graylogic/discovery/dmx/result       discovery results out
//	graylogic/health/dmx                 retained health out
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
