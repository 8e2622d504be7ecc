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

package transport

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/bcem/graphmail/internal/graph"
	"github.com/bcem/graphmail/internal/mail"
)

// BuildPayload converts a message and its envelope into the Graph message
// resource. The envelope sender becomes the Graph sender; the to list is the
// envelope recipients that are not already listed as Cc or Bcc.
func BuildPayload(msg *mail.Message, env mail.Envelope) *graph.Message {
	hidden := lo.SliceToMap(lo.Flatten([][]mail.Address{msg.Cc, msg.Bcc}), func(a mail.Address) (string, struct{}) {
		return a.Address, struct{}{}
	})
	to := lo.Filter(env.Recipients, func(a mail.Address, _ int) bool {
		_, ok := hidden[a.Address]
		return !ok
	})

	return &graph.Message{
		Subject:       msg.Subject,
		Body:          body(msg),
		ToRecipients:  recipients(to),
		CcRecipients:  recipients(msg.Cc),
		BccRecipients: recipients(msg.Bcc),
		ReplyTo:       recipients(msg.ReplyTo),
		Sender:        recipient(env.Sender),
		Attachments:   attachments(msg.Attachments),
	}
}

func body(msg *mail.Message) graph.ItemBody {
	if msg.HTML == "" {
		return graph.ItemBody{ContentType: graph.ContentTypeText, Content: msg.Text}
	}
	return graph.ItemBody{ContentType: graph.ContentTypeHTML, Content: inlineReferences(msg)}
}

// inlineReferences rewrites cid:<filename> references to the generated
// content id of the matching inline part. A reference only matches when the
// filename is followed by a quote, a closing bracket, whitespace or the end
// of the document, so cid:logo never rewrites cid:logo.png.
func inlineReferences(msg *mail.Message) string {
	html := msg.HTML
	for _, a := range msg.Attachments {
		if !a.Inline || a.ContentID == "" || a.Filename == "" || a.Filename == a.ContentID {
			continue
		}
		ref := regexp.MustCompile(`cid:` + regexp.QuoteMeta(a.Filename) + `(["')>\s]|$)`)
		html = ref.ReplaceAllString(html, strings.ReplaceAll("cid:"+a.ContentID, "$", "$$")+"${1}")
	}
	return html
}

func recipient(a mail.Address) graph.Recipient {
	return graph.Recipient{EmailAddress: graph.EmailAddress{Address: a.Address}}
}

// recipients maps addresses in order. The result is never nil so empty
// lists encode as [].
func recipients(addrs []mail.Address) []graph.Recipient {
	return lo.Map(addrs, func(a mail.Address, _ int) graph.Recipient {
		return recipient(a)
	})
}

func attachments(parts []mail.Attachment) []graph.FileAttachment {
	out := make([]graph.FileAttachment, 0, len(parts))
	for _, a := range parts {
		contentID := a.Filename
		if a.ContentID != "" {
			contentID = a.ContentID
		}
		name := a.Filename
		if name == "" {
			name = contentID
		}
		out = append(out, graph.FileAttachment{
			ODataType:    graph.FileAttachmentType,
			Name:         name,
			ContentType:  a.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(a.Body),
			ContentID:    contentID,
			IsInline:     a.Inline,
		})
	}
	return out
}
