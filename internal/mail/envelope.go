// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mail

import "errors"

// ErrNoSender is returned when an envelope cannot be derived because the
// message has neither a Sender nor a From address.
var ErrNoSender = errors.New("mail: message has no sender or from address")

// Envelope carries the SMTP-level sender and recipients. Recipients may
// differ from the headers, e.g. when Bcc is delivered separately.
type Envelope struct {
	Sender     Address
	Recipients []Address
}

// EnvelopeFor derives the envelope of a message: the Sender if set,
// otherwise the first From address, and all To, Cc and Bcc recipients.
func EnvelopeFor(m *Message) (Envelope, error) {
	var sender Address
	switch {
	case m.Sender != nil && m.Sender.Address != "":
		sender = *m.Sender
	case len(m.From) > 0:
		sender = m.From[0]
	default:
		return Envelope{}, ErrNoSender
	}

	return Envelope{
		Sender:     sender,
		Recipients: m.Recipients(),
	}, nil
}
