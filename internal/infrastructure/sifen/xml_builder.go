package sifen

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/facturacion-sifen/internal/application/billing"
	"github.com/jhoicas/facturacion-sifen/internal/domain/entity"
	pkgsifen "github.com/jhoicas/facturacion-sifen/pkg/sifen"
)

const (
	nsXsi          = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "http://ekuatia.set.gov.py/sifen/xsd siRecepDE_v150.xsd"
)

// XMLBuilderService construye el rDE (sin firma) a partir del documento ya numerado y con CDC.
type XMLBuilderService struct {
	now func() time.Time
}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{now: time.Now}
}

// Build genera el []byte del rDE. El DE lleva Id = CDC para la Reference de la firma.
func (s *XMLBuilderService) Build(p billing.SignPayload) ([]byte, error) {
	doc := p.Document
	if doc == nil || p.Authorization == nil || p.Establishment == nil {
		return nil, fmt.Errorf("sifen: faltan documento, timbrado o establecimiento")
	}
	if doc.ControlCode == "" || doc.SequenceNumber == nil {
		return nil, fmt.Errorf("sifen: el documento no tiene CDC o número asignado")
	}
	if doc.DocType.IsNote() && (p.Origin == nil || p.Origin.ControlCode == "") {
		return nil, fmt.Errorf("sifen: la nota requiere el CDC del documento de origen")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "rDE"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: pkgsifen.Namespace},
			{Name: xml.Name{Local: "xmlns:xsi"}, Value: nsXsi},
			{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: schemaLocation},
		},
	}
	start(enc, root)
	field(enc, "dVerFor", pkgsifen.FormatVersion)

	de := xml.StartElement{
		Name: xml.Name{Local: "DE"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "Id"}, Value: doc.ControlCode}},
	}
	start(enc, de)
	field(enc, "dDVId", doc.ControlCode[len(doc.ControlCode)-1:])
	field(enc, "dFecFirma", s.now().Format(dateTimeLayout))
	field(enc, "dSisFact", systemInvoicing)

	// ---- gOpeDE: tipo de emisión y código de seguridad
	open(enc, "gOpeDE")
	field(enc, "iTipEmi", strconv.Itoa(pkgsifen.EmissionNormal))
	field(enc, "dDesTipEmi", pkgsifen.EmissionDescription(pkgsifen.EmissionNormal))
	field(enc, "dCodSeg", doc.SecurityCode)
	closeEl(enc, "gOpeDE")

	// ---- gTimb: timbrado y numeración
	open(enc, "gTimb")
	field(enc, "iTiDE", strconv.Itoa(int(doc.DocType)))
	field(enc, "dDesTiDE", pkgsifen.DocumentTypeDescription(int(doc.DocType)))
	field(enc, "dNumTim", p.Authorization.Number)
	field(enc, "dEst", doc.EstablishmentCode)
	field(enc, "dPunExp", doc.ExpeditionCode)
	field(enc, "dNumDoc", entity.PadSequence(*doc.SequenceNumber))
	if doc.Series != "" {
		field(enc, "dSerieNum", doc.Series)
	}
	field(enc, "dFeIniT", p.Authorization.ValidFrom.Format(dateLayout))
	closeEl(enc, "gTimb")

	// ---- gDatGralOpe: fecha, operación comercial, emisor y receptor
	open(enc, "gDatGralOpe")
	field(enc, "dFeEmiDE", doc.IssueDate.Format(dateTimeLayout))
	s.writeCommercialOperation(enc, doc)
	s.writeIssuer(enc, p)
	s.writeReceiver(enc, doc.Counterparty)
	closeEl(enc, "gDatGralOpe")

	// ---- gDtipDE: campos específicos por tipo e ítems
	open(enc, "gDtipDE")
	switch {
	case doc.DocType == entity.DocTypeInvoice:
		open(enc, "gCamFE")
		field(enc, "iIndPres", presenceCode)
		field(enc, "dDesIndPres", presenceDesc)
		closeEl(enc, "gCamFE")
		open(enc, "gCamCond")
		field(enc, "iCondOpe", conditionCash)
		field(enc, "dDCondOpe", conditionDesc)
		closeEl(enc, "gCamCond")
	case doc.DocType.IsNote():
		reason := pkgsifen.NoteReasonReturnAndPriceAdjust
		if doc.DocType == entity.DocTypeDebitNote {
			reason = pkgsifen.NoteReasonPriceAdjust
		}
		open(enc, "gCamNCDE")
		field(enc, "iMotEmi", strconv.Itoa(reason))
		field(enc, "dDesMotEmi", pkgsifen.NoteReasonDescription(reason))
		closeEl(enc, "gCamNCDE")
	}
	for _, line := range p.Lines {
		s.writeItem(enc, line)
	}
	closeEl(enc, "gDtipDE")

	// ---- gTotSub
	s.writeTotals(enc, doc)

	// ---- gCamDEAsoc: documento asociado de NC/ND
	if doc.DocType.IsNote() {
		open(enc, "gCamDEAsoc")
		field(enc, "iTipDocAso", docAssocElec)
		field(enc, "dDesTipDocAso", docAssocDesc)
		field(enc, "dCdCDERef", p.Origin.ControlCode)
		closeEl(enc, "gCamDEAsoc")
	}

	end(enc, de)
	end(enc, root)
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) writeCommercialOperation(enc *xml.Encoder, doc *entity.Document) {
	open(enc, "gOpeCom")
	field(enc, "iTImp", strconv.Itoa(pkgsifen.TaxIVA))
	field(enc, "dDesTImp", "IVA")
	field(enc, "cMoneOpe", doc.Currency)
	field(enc, "dDesMoneOpe", currencyDescription(doc.Currency))
	closeEl(enc, "gOpeCom")
}

func (s *XMLBuilderService) writeIssuer(enc *xml.Encoder, p billing.SignPayload) {
	open(enc, "gEmis")
	field(enc, "dRucEm", p.Authorization.RUC)
	field(enc, "dDVEmi", p.Authorization.RUCCheckDigit)
	field(enc, "iTipCont", strconv.Itoa(p.Authorization.TaxpayerType))
	field(enc, "dNomEmi", cleanText(p.Authorization.BusinessName))
	if p.Establishment.Address != "" {
		field(enc, "dDirEmi", cleanText(p.Establishment.Address))
	}
	field(enc, "dNumCas", "0")
	closeEl(enc, "gEmis")
}

func (s *XMLBuilderService) writeReceiver(enc *xml.Encoder, c entity.Counterparty) {
	open(enc, "gDatRec")
	if c.IsTaxpayer() {
		field(enc, "iNatRec", strconv.Itoa(pkgsifen.ReceiverTaxpayer))
		field(enc, "iTiOpe", strconv.Itoa(pkgsifen.OperationB2B))
	} else {
		field(enc, "iNatRec", strconv.Itoa(pkgsifen.ReceiverNonTaxpayer))
		field(enc, "iTiOpe", strconv.Itoa(pkgsifen.OperationB2C))
	}
	field(enc, "cPaisRec", countryPY)
	field(enc, "dDesPaisRe", countryPYDesc)
	if c.IsTaxpayer() {
		field(enc, "dRucRec", c.RUC)
		field(enc, "dDVRec", c.RUCCheckDigit)
	} else {
		id := c.DocumentNumber
		if id == "" {
			id = "0"
		}
		field(enc, "dNumIDRec", id)
	}
	name := cleanText(c.Name)
	if name == "" {
		name = "Sin Nombre"
	}
	field(enc, "dNomRec", name)
	if c.Address != "" {
		field(enc, "dDirRec", cleanText(c.Address))
	}
	if c.Email != "" {
		field(enc, "dEmailRec", c.Email)
	}
	closeEl(enc, "gDatRec")
}

func (s *XMLBuilderService) writeItem(enc *xml.Encoder, line *entity.DocumentLine) {
	open(enc, "gCamItem")
	code := line.Code
	if code == "" {
		code = strconv.Itoa(line.LineNo)
	}
	field(enc, "dCodInt", cleanText(code))
	field(enc, "dDesProSer", cleanText(line.Description))
	field(enc, "cUniMed", unitMeasureCode)
	field(enc, "dDesUniMed", unitMeasureDesc)
	field(enc, "dCantProSer", amount(line.Quantity))

	open(enc, "gValorItem")
	field(enc, "dPUniProSer", amount(line.UnitPrice))
	field(enc, "dTotBruOpeItem", amount(line.Total))
	open(enc, "gValorRestaItem")
	field(enc, "dTotOpeItem", amount(line.Total))
	closeEl(enc, "gValorRestaItem")
	closeEl(enc, "gValorItem")

	affect, rate, taxedPct := affectation(line)
	open(enc, "gCamIVA")
	field(enc, "iAfecIVA", strconv.Itoa(affect))
	field(enc, "dDesAfecIVA", pkgsifen.AffectDescription(affect))
	field(enc, "dPropIVA", amount(taxedPct))
	field(enc, "dTasaIVA", strconv.Itoa(rate))
	field(enc, "dBasGravIVA", amount(line.Base5.Add(line.Base10)))
	field(enc, "dLiqIVAItem", amount(line.VAT5.Add(line.VAT10)))
	field(enc, "dBasExe", amount(line.Exempt))
	closeEl(enc, "gCamIVA")

	closeEl(enc, "gCamItem")
}

// affectation deriva iAfecIVA, la tasa y la proporción gravada a partir de los porcentajes de la línea.
func affectation(line *entity.DocumentLine) (affect int, rate int, taxedPct decimal.Decimal) {
	taxedPct = line.Percent5.Add(line.Percent10)
	switch {
	case line.Percent10.IsPositive():
		rate = 10
	case line.Percent5.IsPositive():
		rate = 5
	}
	switch {
	case taxedPct.IsZero():
		return pkgsifen.AffectExempt, 0, decimal.Zero
	case line.ExemptPercent.IsPositive():
		return pkgsifen.AffectPartial, rate, taxedPct
	}
	return pkgsifen.AffectTaxed, rate, taxedPct
}

func (s *XMLBuilderService) writeTotals(enc *xml.Encoder, doc *entity.Document) {
	open(enc, "gTotSub")
	field(enc, "dSubExe", amount(doc.Exempt))
	field(enc, "dSub5", amount(doc.Base5.Add(doc.VAT5)))
	field(enc, "dSub10", amount(doc.Base10.Add(doc.VAT10)))
	field(enc, "dTotOpe", amount(doc.RawTotal))
	field(enc, "dRedon", amount(doc.RoundingAdjustment))
	field(enc, "dTotGralOpe", amount(doc.Total))
	field(enc, "dIVA5", amount(doc.VAT5))
	field(enc, "dIVA10", amount(doc.VAT10))
	field(enc, "dTotIVA", amount(doc.VAT5.Add(doc.VAT10)))
	field(enc, "dBaseGrav5", amount(doc.Base5))
	field(enc, "dBaseGrav10", amount(doc.Base10))
	field(enc, "dTBasGraIVA", amount(doc.Base5.Add(doc.Base10)))
	closeEl(enc, "gTotSub")
}

// amount imprime el importe sin ceros decimales de relleno (hasta 8 decimales, como admite el XSD).
func amount(d decimal.Decimal) string {
	return d.Round(8).String()
}

func start(enc *xml.Encoder, el xml.StartElement) { _ = enc.EncodeToken(el) }
func end(enc *xml.Encoder, el xml.StartElement)   { _ = enc.EncodeToken(el.End()) }

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func field(enc *xml.Encoder, local, value string) {
	open(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	closeEl(enc, local)
}
