package contenthash

// LabeledString is a labeled contact field such as a phone number or
// email address. ID is the stable field identifier assigned by the native
// store, part of the field's semantic identity.
type LabeledString struct {
	ID    string
	Label *string
	Value string
}

// LabeledDate is a labeled date field (anniversaries and the like).
type LabeledDate struct {
	ID    string
	Label *string
	Date  *DateComponents
}

// IMAddress is an instant-messaging handle.
type IMAddress struct {
	ID       string
	Label    *string
	Service  string
	Username string
}

// PostalAddress is one labeled street address.
type PostalAddress struct {
	ID         string
	Label      *string
	City       string
	Country    string
	PostalCode string
	State      string
	Street     string
}

// Contact is an address-book entry.
type Contact struct {
	Birthday           *DateComponents
	Department         string
	FamilyName         string
	GivenName          string
	JobTitle           string
	MiddleName         string
	NamePrefix         string
	NameSuffix         string
	Nickname           string
	Organization       string
	PreviousFamilyName string
	Dates              []LabeledDate
	Emails             []LabeledString
	IMAddresses        []IMAddress
	PhoneNumbers       []LabeledString
	PostalAddresses    []PostalAddress
	URLs               []LabeledString
	Relations          []LabeledString
	ImageThumbnail     []byte
}

func labeledStrings(ls []LabeledString) (interface{}, error) {
	elems := make([]interface{}, len(ls))
	for i, l := range ls {
		elems[i] = []interface{}{l.ID, stringOrNil(l.Label), l.Value}
	}
	return sortedCollection(elems)
}

// CanonicalFields implements Record.
func (c *Contact) CanonicalFields() ([]interface{}, error) {
	msg := []interface{}{
		c.Birthday.canonical(),
		c.Department,
		c.FamilyName,
		c.GivenName,
		c.JobTitle,
		c.MiddleName,
		c.NamePrefix,
		c.NameSuffix,
		c.Nickname,
		c.Organization,
		c.PreviousFamilyName,
	}

	dateElems := make([]interface{}, len(c.Dates))
	for i, d := range c.Dates {
		dateElems[i] = []interface{}{d.ID, stringOrNil(d.Label), d.Date.canonical()}
	}
	dates, err := sortedCollection(dateElems)
	if err != nil {
		return nil, err
	}
	msg = append(msg, dates)

	emails, err := labeledStrings(c.Emails)
	if err != nil {
		return nil, err
	}
	msg = append(msg, emails)

	imElems := make([]interface{}, len(c.IMAddresses))
	for i, im := range c.IMAddresses {
		imElems[i] = []interface{}{im.ID, stringOrNil(im.Label), im.Service, im.Username}
	}
	ims, err := sortedCollection(imElems)
	if err != nil {
		return nil, err
	}
	msg = append(msg, ims)

	phones, err := labeledStrings(c.PhoneNumbers)
	if err != nil {
		return nil, err
	}
	msg = append(msg, phones)

	postalElems := make([]interface{}, len(c.PostalAddresses))
	for i, p := range c.PostalAddresses {
		postalElems[i] = []interface{}{p.ID, stringOrNil(p.Label), p.City, p.Country, p.PostalCode, p.State, p.Street}
	}
	postals, err := sortedCollection(postalElems)
	if err != nil {
		return nil, err
	}
	msg = append(msg, postals)

	urls, err := labeledStrings(c.URLs)
	if err != nil {
		return nil, err
	}
	msg = append(msg, urls)

	relations, err := labeledStrings(c.Relations)
	if err != nil {
		return nil, err
	}
	msg = append(msg, relations)

	if c.ImageThumbnail != nil {
		msg = append(msg, c.ImageThumbnail)
	} else {
		msg = append(msg, nil)
	}

	return msg, nil
}
