package imgur

// UploadInfo holds the decoded response document of a successful upload.
type UploadInfo struct {
	doc any
}

// Link returns the shareable URL at data.link, if the response has one.
func (u *UploadInfo) Link() (string, bool) {
	return u.lookupString("data", "link")
}

// ID returns the image hash at data.id.
func (u *UploadInfo) ID() (string, bool) {
	return u.lookupString("data", "id")
}

// DeleteHash returns data.deletehash, which anonymous uploads need to be removed later.
func (u *UploadInfo) DeleteHash() (string, bool) {
	return u.lookupString("data", "deletehash")
}

// Success reports the top-level success flag sent by the API.
func (u *UploadInfo) Success() (bool, bool) {
	v, ok := u.Lookup("success")
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Lookup walks nested objects by key and returns the value at the end of path.
// It reports false as soon as a key is missing or a step is not an object.
func (u *UploadInfo) Lookup(path ...string) (any, bool) {
	if u == nil {
		return nil, false
	}
	cur := u.doc
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Raw returns the decoded document. Numbers are json.Number values.
func (u *UploadInfo) Raw() any {
	if u == nil {
		return nil
	}
	return u.doc
}

func (u *UploadInfo) lookupString(path ...string) (string, bool) {
	v, ok := u.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
