package domain

import "time"

// Filing is one row of the EDGAR full index.
type Filing struct {
	CIK       int64     `json:"cik" msgpack:"cik"`
	Company   string    `json:"company" msgpack:"company"`
	FormType  string    `json:"form_type" msgpack:"form_type"`
	DateFiled time.Time `json:"date_filed" msgpack:"date_filed"`
	Filename  string    `json:"filename" msgpack:"filename"` // path under /Archives/
}

// Headline is a dated news title for a ticker. Published is zero when the
// source gave no parseable timestamp.
type Headline struct {
	Ticker    string    `json:"ticker" msgpack:"ticker"`
	Title     string    `json:"title" msgpack:"title"`
	Published time.Time `json:"published" msgpack:"published"`
}
