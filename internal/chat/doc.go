// Copyright (c) 2025 HealthChat Project
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the orchestrating core of healthchat: the Controller ties
// the conversation store, the request serializer, and the streaming provider
// client together behind the operations a front end needs (new, select,
// delete, send, stop).
//
// One generation runs at a time. The controller holds the in-flight turn's
// cancellation handle and rejects concurrent sends instead of queueing them.
package chat
