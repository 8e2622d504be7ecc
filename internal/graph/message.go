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

package graph

// Body content types accepted by Graph.
const (
	ContentTypeHTML = "HTML"
	ContentTypeText = "Text"
)

// FileAttachmentType is the OData type of a file attachment.
const FileAttachmentType = "#microsoft.graph.fileAttachment"

// Message is the Graph message resource as sent to /messages and /sendMail.
// Recipient lists are never omitted; an empty list encodes as [].
type Message struct {
	Subject       string           `json:"subject"`
	Body          ItemBody         `json:"body"`
	ToRecipients  []Recipient      `json:"toRecipients"`
	CcRecipients  []Recipient      `json:"ccRecipients"`
	BccRecipients []Recipient      `json:"bccRecipients"`
	ReplyTo       []Recipient      `json:"replyTo"`
	Sender        Recipient        `json:"sender"`
	Attachments   []FileAttachment `json:"attachments"`
}

// ItemBody is the message body.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Recipient wraps a single email address.
type Recipient struct {
	EmailAddress EmailAddress `json:"emailAddress"`
}

// EmailAddress is the address part of a recipient.
type EmailAddress struct {
	Address string `json:"address"`
}

// FileAttachment is a base64 encoded attachment.
type FileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	ContentID    string `json:"contentId"`
	IsInline     bool   `json:"isInline"`
}

// sendMailRequest is the /sendMail request body.
type sendMailRequest struct {
	Message         *Message `json:"message"`
	SaveToSentItems bool     `json:"saveToSentItems"`
}

// DraftResponse holds the identifiers of a freshly created draft.
type DraftResponse struct {
	ID                string `json:"id"`
	InternetMessageID string `json:"internetMessageId"`
}
