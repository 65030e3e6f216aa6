// Package mqtt delivers dispatch notices to vehicle operators over MQTT.
//
// Notices are published as JSON on the per-vehicle notice topic; operators
// answer on the shared ack topic with {"notice_id": "...", "accepted": bool,
// "reason": "..."}.
package mqtt
