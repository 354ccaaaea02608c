package model

const ContentTypePDF = "application/pdf"

// Attachment is a file carried by an outgoing email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}
