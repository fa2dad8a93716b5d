package signatures

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signaturesXML = `<?xml version="1.0" encoding="UTF-8"?>
<asic:XAdESSignatures xmlns:asic="http://uri.etsi.org/02918/v1.2.1#" xmlns:ds="http://www.w3.org/2000/09/xmldsig#" xmlns:xades="http://uri.etsi.org/01903/v1.3.2#">
  <ds:Signature Id="S0">
    <ds:SignedInfo>
      <ds:CanonicalizationMethod Algorithm="http://www.w3.org/2006/12/xml-c14n11"/>
      <ds:Reference URI="test.txt">
        <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
        <ds:DigestValue>n4bQgYhMfWWaL+qgxVrQFaO/TxsrC4Is0V1sFbDwCgg=</ds:DigestValue>
      </ds:Reference>
    </ds:SignedInfo>
    <ds:SignatureValue>AAAA</ds:SignatureValue>
    <ds:Object>
      <xades:QualifyingProperties Target="#S0">
        <xades:UnsignedProperties>
          <xades:UnsignedSignatureProperties>
            <xades:SignatureTimeStamp/>
            <xades:ArchiveTimeStamp/>
          </xades:UnsignedSignatureProperties>
        </xades:UnsignedProperties>
      </xades:QualifyingProperties>
    </ds:Object>
  </ds:Signature>
  <ds:Signature Id="S1">
    <ds:SignedInfo>
      <ds:Reference URI="test.txt">
        <ds:DigestMethod Algorithm="http://www.w3.org/2001/04/xmlenc#sha256"/>
        <ds:DigestValue>n4bQgYhMfWWaL+qgxVrQFaO/TxsrC4Is0V1sFbDwCgg=</ds:DigestValue>
      </ds:Reference>
    </ds:SignedInfo>
    <ds:SignatureValue>AAAA</ds:SignatureValue>
  </ds:Signature>
</asic:XAdESSignatures>`

func TestParseXAdESSignatures(t *testing.T) {
	sigs, err := ParseXAdESSignatures([]byte(signaturesXML))
	require.NoError(t, err)
	require.Len(t, sigs, 2)

	assert.Equal(t, "S0", sigs[0].ID())
	assert.Equal(t, ProfileXAdESLTA, sigs[0].Profile())
	assert.Equal(t, ProfileXAdESBES, sigs[1].Profile())

	refs := sigs[0].References()
	require.Len(t, refs, 1)
	assert.Equal(t, "test.txt", refs[0].URI)
	assert.Equal(t, DigestSHA256, refs[0].Digest.Algorithm)
	assert.Len(t, refs[0].Digest.Value, 32)

	// Both signatures persist as the one shared document.
	assert.Same(t, sigs[0].Document(), sigs[1].Document())
	assert.Equal(t, 2, sigs[0].Document().Len())
	assert.Equal(t, []byte(signaturesXML), sigs[1].Save())
	assert.Equal(t, 1, sigs[1].Index())
}

func TestParseXAdESSignatures_Invalid(t *testing.T) {
	_, err := ParseXAdESSignatures([]byte(`<asic:XAdESSignatures xmlns:asic="http://uri.etsi.org/02918/v1.2.1#"/>`))
	assert.True(t, errors.Is(err, ErrNoSignatures))

	_, err = ParseXAdESSignatures([]byte(`<not-xml`))
	assert.Error(t, err)

	_, err = ParseXAdESSignatures([]byte(`<Other xmlns="urn:x"/>`))
	assert.Error(t, err)
}
