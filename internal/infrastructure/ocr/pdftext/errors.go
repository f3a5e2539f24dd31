package pdftext

import "errors"

var errMalformedPDF = errors.New("malformed pdf")
