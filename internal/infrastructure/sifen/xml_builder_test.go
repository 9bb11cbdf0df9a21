package sifen_test

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	"github.com/jhoicas/facturacion-sifen/internal/infrastructure/sifen"
)

func parse(t *testing.T, b []byte) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(b))
	return doc
}

func text(doc *etree.Document, path string) string {
	el := doc.FindElement(path)
	if el == nil {
		return ""
	}
	return el.Text()
}

func TestBuild_Factura(t *testing.T) {
	out, err := sifen.NewXMLBuilderService().Build(samplePayload())
	require.NoError(t, err)
	doc := parse(t, out)

	root := doc.Root()
	require.Equal(t, "rDE", root.Tag)
	assert.Equal(t, "http://ekuatia.set.gov.py/sifen/xsd", root.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "150", text(doc, "/rDE/dVerFor"))

	de := root.SelectElement("DE")
	require.NotNil(t, de)
	assert.Equal(t, testCDC, de.SelectAttrValue("Id", ""))
	assert.Equal(t, "7", text(doc, "//DE/dDVId"))
	assert.Equal(t, "000000001", text(doc, "//gOpeDE/dCodSeg"))
	assert.Equal(t, "0000012", text(doc, "//gTimb/dNumDoc"))
	assert.Equal(t, "12345678", text(doc, "//gTimb/dNumTim"))
	assert.Equal(t, "2026-03-02T10:00:00", text(doc, "//gDatGralOpe/dFeEmiDE"))
	assert.Equal(t, "80012345", text(doc, "//gEmis/dRucEm"))
	assert.Equal(t, "80000000", text(doc, "//gDatRec/dRucRec"))
	assert.Equal(t, "Cliente de Prueba", text(doc, "//gDatRec/dNomRec"), "texto normalizado")
	assert.NotNil(t, doc.FindElement("//gCamFE"))
	assert.Nil(t, doc.FindElement("//gCamDEAsoc"))

	assert.Equal(t, "1", text(doc, "//gCamItem/gCamIVA/iAfecIVA"))
	assert.Equal(t, "10", text(doc, "//gCamItem/gCamIVA/dTasaIVA"))
	assert.Equal(t, "Café molido", text(doc, "//gCamItem/dDesProSer"))

	assert.Equal(t, "10014", text(doc, "//gTotSub/dTotOpe"))
	assert.Equal(t, "14", text(doc, "//gTotSub/dRedon"))
	assert.Equal(t, "10000", text(doc, "//gTotSub/dTotGralOpe"))
	assert.Equal(t, "910.36", text(doc, "//gTotSub/dTotIVA"))
}

func TestBuild_NotaDeCredito(t *testing.T) {
	p := samplePayload()
	p.Document.DocType = entity.DocTypeCreditNote
	_, err := sifen.NewXMLBuilderService().Build(p)
	require.Error(t, err, "sin origen no se puede construir la nota")

	p.Origin = &entity.Document{ControlCode: "01800123450001001000000112026030110000000011"}
	out, err := sifen.NewXMLBuilderService().Build(p)
	require.NoError(t, err)
	doc := parse(t, out)
	assert.Equal(t, p.Origin.ControlCode, text(doc, "//gCamDEAsoc/dCdCDERef"))
	assert.NotNil(t, doc.FindElement("//gCamNCDE"))
	assert.Nil(t, doc.FindElement("//gCamFE"))
}

func TestBuild_ReceptorNoContribuyente(t *testing.T) {
	p := samplePayload()
	p.Document.Counterparty = entity.Counterparty{DocumentNumber: "1234567"}
	out, err := sifen.NewXMLBuilderService().Build(p)
	require.NoError(t, err)
	doc := parse(t, out)
	assert.Equal(t, "2", text(doc, "//gDatRec/iNatRec"))
	assert.Equal(t, "1234567", text(doc, "//gDatRec/dNumIDRec"))
	assert.Equal(t, "Sin Nombre", text(doc, "//gDatRec/dNomRec"))
}

func TestBuild_ExentoYParcial(t *testing.T) {
	p := samplePayload()
	p.Lines[0].Percent10 = dec("0")
	p.Lines[0].ExemptPercent = dec("100")
	out, err := sifen.NewXMLBuilderService().Build(p)
	require.NoError(t, err)
	assert.Equal(t, "3", text(parse(t, out), "//gCamIVA/iAfecIVA"))

	p.Lines[0].Percent5 = dec("30")
	p.Lines[0].ExemptPercent = dec("70")
	out, err = sifen.NewXMLBuilderService().Build(p)
	require.NoError(t, err)
	doc := parse(t, out)
	assert.Equal(t, "4", text(doc, "//gCamIVA/iAfecIVA"))
	assert.Equal(t, "5", text(doc, "//gCamIVA/dTasaIVA"))
	assert.Equal(t, "30", text(doc, "//gCamIVA/dPropIVA"))
}

func TestBuild_SinCDC(t *testing.T) {
	p := samplePayload()
	p.Document.ControlCode = ""
	_, err := sifen.NewXMLBuilderService().Build(p)
	assert.Error(t, err)
}
