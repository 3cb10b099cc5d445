package jpegr

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

const (
	hdrgmNamespace     = "http://ns.adobe.com/hdr-gain-map/1.0/"
	containerNamespace = "http://ns.google.com/photos/1.0/container/"
	itemNamespace      = "http://ns.google.com/photos/1.0/container/item/"
)

func fmtXMPFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', 6, 32)
}

// generateGainmapXMP serializes metadata into the APP1 payload carried by
// the gain map image, namespace prefix and terminator included. Boost and
// capacity values are stored as log2 per the hdrgm convention.
func generateGainmapXMP(meta *GainMapMetadata) []byte {
	var b strings.Builder
	b.WriteString(xmpNamespace)
	b.WriteByte(0)
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">` + "\n")
	b.WriteString(`  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`    <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`      xmlns:hdrgm="` + hdrgmNamespace + `"` + "\n")
	b.WriteString(`      hdrgm:Version="` + meta.Version + `"` + "\n")
	b.WriteString(`      hdrgm:GainMapMin="` + fmtXMPFloat(log2f(meta.MinContentBoost[0])) + `"` + "\n")
	b.WriteString(`      hdrgm:GainMapMax="` + fmtXMPFloat(log2f(meta.MaxContentBoost[0])) + `"` + "\n")
	b.WriteString(`      hdrgm:Gamma="` + fmtXMPFloat(meta.Gamma[0]) + `"` + "\n")
	b.WriteString(`      hdrgm:OffsetSDR="` + fmtXMPFloat(meta.OffsetSDR[0]) + `"` + "\n")
	b.WriteString(`      hdrgm:OffsetHDR="` + fmtXMPFloat(meta.OffsetHDR[0]) + `"` + "\n")
	b.WriteString(`      hdrgm:HDRCapacityMin="` + fmtXMPFloat(log2f(meta.HDRCapacityMin)) + `"` + "\n")
	b.WriteString(`      hdrgm:HDRCapacityMax="` + fmtXMPFloat(log2f(meta.HDRCapacityMax)) + `"` + "\n")
	b.WriteString(`      hdrgm:BaseRenditionIsHDR="False"/>` + "\n")
	b.WriteString(`  </rdf:RDF>` + "\n")
	b.WriteString(`</x:xmpmeta>`)
	return []byte(b.String())
}

// generatePrimaryXMP serializes the base image APP1 payload that references
// the gain map by MPF index and length.
func generatePrimaryXMP(secondaryLength int) []byte {
	var b strings.Builder
	b.WriteString(xmpNamespace)
	b.WriteByte(0)
	b.WriteString(`<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">` + "\n")
	b.WriteString(`  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` + "\n")
	b.WriteString(`    <rdf:Description rdf:about=""` + "\n")
	b.WriteString(`      xmlns:Container="` + containerNamespace + `"` + "\n")
	b.WriteString(`      xmlns:Item="` + itemNamespace + `"` + "\n")
	b.WriteString(`      xmlns:hdrgm="` + hdrgmNamespace + `"` + "\n")
	b.WriteString(`      hdrgm:Version="` + jpegrVersion + `">` + "\n")
	b.WriteString(`      <Container:Directory>` + "\n")
	b.WriteString(`        <rdf:Seq>` + "\n")
	b.WriteString(`          <rdf:li rdf:parseType="Resource">` + "\n")
	b.WriteString(`            <Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/>` + "\n")
	b.WriteString(`          </rdf:li>` + "\n")
	b.WriteString(`          <rdf:li rdf:parseType="Resource">` + "\n")
	b.WriteString(`            <Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="` + strconv.Itoa(secondaryLength) + `"/>` + "\n")
	b.WriteString(`          </rdf:li>` + "\n")
	b.WriteString(`        </rdf:Seq>` + "\n")
	b.WriteString(`      </Container:Directory>` + "\n")
	b.WriteString(`    </rdf:Description>` + "\n")
	b.WriteString(`  </rdf:RDF>` + "\n")
	b.WriteString(`</x:xmpmeta>`)
	return []byte(b.String())
}

// hdrgmAttrRe matches every hdrgm: attribute in one pass; the field table
// below decides what each attribute means.
var hdrgmAttrRe = regexp.MustCompile(`hdrgm:([A-Za-z]+)="([^"]+)"`)

// xmpField maps an hdrgm attribute to its slot in GainMapMetadata. log2
// marks values stored as log2 of the linear quantity.
type xmpField struct {
	attr     string
	log2     bool
	required bool
	dst      func(m *GainMapMetadata) *float32
}

var xmpFields = []xmpField{
	{attr: "GainMapMin", log2: true, dst: func(m *GainMapMetadata) *float32 { return &m.MinContentBoost[0] }},
	{attr: "GainMapMax", log2: true, required: true, dst: func(m *GainMapMetadata) *float32 { return &m.MaxContentBoost[0] }},
	{attr: "Gamma", dst: func(m *GainMapMetadata) *float32 { return &m.Gamma[0] }},
	{attr: "OffsetSDR", dst: func(m *GainMapMetadata) *float32 { return &m.OffsetSDR[0] }},
	{attr: "OffsetHDR", dst: func(m *GainMapMetadata) *float32 { return &m.OffsetHDR[0] }},
	{attr: "HDRCapacityMin", log2: true, dst: func(m *GainMapMetadata) *float32 { return &m.HDRCapacityMin }},
	{attr: "HDRCapacityMax", log2: true, required: true, dst: func(m *GainMapMetadata) *float32 { return &m.HDRCapacityMax }},
}

func parseXMP(app1 []byte) (*GainMapMetadata, error) {
	if len(app1) < len(xmpNamespace)+2 {
		return nil, errors.New("xmp block too small")
	}
	if !strings.HasPrefix(string(app1), xmpNamespace+"\x00") {
		return nil, errors.New("xmp namespace mismatch")
	}

	attrs := map[string]string{}
	for _, m := range hdrgmAttrRe.FindAllStringSubmatch(string(app1[len(xmpNamespace)+1:]), -1) {
		attrs[m[1]] = m[2]
	}

	meta := &GainMapMetadata{Version: jpegrVersion, UseBaseCG: true}
	meta.MinContentBoost[0] = 1
	meta.MaxContentBoost[0] = 1
	meta.Gamma[0] = 1
	meta.OffsetSDR[0] = 1.0 / 64.0
	meta.OffsetHDR[0] = 1.0 / 64.0
	meta.HDRCapacityMin = 1
	meta.HDRCapacityMax = 1

	v, ok := attrs["Version"]
	if !ok {
		return nil, errors.New("xmp missing version")
	}
	meta.Version = v

	for _, f := range xmpFields {
		str, ok := attrs[f.attr]
		if !ok {
			if f.required {
				return nil, errors.New("xmp missing " + f.attr)
			}
			continue
		}
		fv, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return nil, err
		}
		val := float32(fv)
		if f.log2 {
			val = exp2f(val)
		}
		*f.dst(meta) = val
	}

	if attrs["BaseRenditionIsHDR"] == "True" {
		return nil, errors.New("base rendition HDR not supported")
	}

	// Unset channels follow channel 0.
	for _, ch := range []*[3]float32{
		&meta.MinContentBoost, &meta.MaxContentBoost, &meta.Gamma,
		&meta.OffsetSDR, &meta.OffsetHDR,
	} {
		for i := 1; i < 3; i++ {
			if ch[i] == 0 {
				ch[i] = ch[0]
			}
		}
	}
	return meta, nil
}
