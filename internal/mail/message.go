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

// Package mail defines the generic outbound message handed to a transport.
package mail

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Address is an email address with an optional display name.
type Address struct {
	Address string `json:"address" validate:"required,email"`
	Name    string `json:"name,omitempty"`
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

// Addresses builds an address list from bare addresses.
func Addresses(addrs ...string) []Address {
	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Address{Address: a})
	}
	return out
}

// Attachment is a file carried by a message. ContentID is set for parts
// embedded in the HTML body and referenced as cid:<ContentID>.
type Attachment struct {
	Filename    string `json:"filename" validate:"required_without=ContentID"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	Inline      bool   `json:"inline,omitempty"`
	ContentID   string `json:"content_id,omitempty"`
}

// Message is a generic outbound email.
type Message struct {
	From        []Address    `json:"from" validate:"dive"`
	Sender      *Address     `json:"sender,omitempty"`
	To          []Address    `json:"to" validate:"dive"`
	Cc          []Address    `json:"cc,omitempty" validate:"dive"`
	Bcc         []Address    `json:"bcc,omitempty" validate:"dive"`
	ReplyTo     []Address    `json:"reply_to,omitempty" validate:"dive"`
	Subject     string       `json:"subject"`
	Text        string       `json:"text,omitempty"`
	HTML        string       `json:"html,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty" validate:"dive"`
}

// Attach adds a regular attachment.
func (m *Message) Attach(filename, contentType string, body []byte) {
	m.Attachments = append(m.Attachments, Attachment{
		Filename:    filename,
		ContentType: contentType,
		Body:        body,
	})
}

// AttachFile reads a file from disk and attaches it, guessing the content
// type from the extension and then the content.
func (m *Message) AttachFile(path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read attachment %s: %w", path, err)
	}
	m.Attach(filepath.Base(path), DetectContentType(path, body), body)
	return nil
}

// Embed adds an inline attachment under a generated content id and returns
// the cid: reference to place in the HTML body.
func (m *Message) Embed(filename, contentType string, body []byte) string {
	cid := newContentID()
	m.Attachments = append(m.Attachments, Attachment{
		Filename:    filename,
		ContentType: contentType,
		Body:        body,
		Inline:      true,
		ContentID:   cid,
	})
	return "cid:" + cid
}

// Recipients returns To, Cc and Bcc in that order.
func (m *Message) Recipients() []Address {
	out := make([]Address, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	out = append(out, m.Bcc...)
	return out
}

// DetectContentType guesses a MIME type for an attachment.
func DetectContentType(filename string, body []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return http.DetectContentType(body)
}

func newContentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + "@graphmail"
}
