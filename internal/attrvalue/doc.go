// Package attrvalue converts between plain Go values and the tagged attribute
// encoding used for change feed images.
//
// Every attribute is a single-key object naming its kind: {"S": "World"},
// {"N": "123"}, {"BOOL": true}, {"NULL": true}, {"M": {...}}, {"L": [...]},
// plus the set kinds SS, NS, BS and the binary kind B. Decoding is total over
// those kinds; anything else is reported with ErrUnsupportedAttributeEncoding
// and handed back untouched.
package attrvalue
