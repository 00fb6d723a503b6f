package core

// UIType is the virtual column type presented to clients.
type UIType string

// UI types.
const (
	UITypeID               UIType = "ID"
	UITypeForeignKey       UIType = "ForeignKey"
	UITypeSingleLineText   UIType = "SingleLineText"
	UITypeLongText         UIType = "LongText"
	UITypeEmail            UIType = "Email"
	UITypeURL              UIType = "URL"
	UITypePhoneNumber      UIType = "PhoneNumber"
	UITypeNumber           UIType = "Number"
	UITypeDecimal          UIType = "Decimal"
	UITypeCurrency         UIType = "Currency"
	UITypePercent          UIType = "Percent"
	UITypeRating           UIType = "Rating"
	UITypeDuration         UIType = "Duration"
	UITypeYear             UIType = "Year"
	UITypeCheckbox         UIType = "Checkbox"
	UITypeDate             UIType = "Date"
	UITypeDateTime         UIType = "DateTime"
	UITypeJSON             UIType = "JSON"
	UITypeSingleSelect     UIType = "SingleSelect"
	UITypeMultiSelect      UIType = "MultiSelect"
	UITypeSpecificDBType   UIType = "SpecificDBType"
	UITypeLinkToAnother    UIType = "LinkToAnotherRecord"
	UITypeLinks            UIType = "Links"
	UITypeLookup           UIType = "Lookup"
	UITypeRollup           UIType = "Rollup"
	UITypeFormula          UIType = "Formula"
	UITypeBarcode          UIType = "Barcode"
	UITypeQrCode           UIType = "QrCode"
	UITypeButton           UIType = "Button"
	UITypeCreatedTime      UIType = "CreatedTime"
	UITypeLastModifiedTime UIType = "LastModifiedTime"
)

// IsVirtual reports whether values of this type are computed rather than stored.
func (t UIType) IsVirtual() bool {
	switch t {
	case UITypeLinkToAnother, UITypeLinks, UITypeLookup, UITypeRollup,
		UITypeFormula, UITypeBarcode, UITypeQrCode, UITypeButton:
		return true
	}
	return false
}

// IsLink reports whether the type is a relation column.
func (t UIType) IsLink() bool {
	return t == UITypeLinkToAnother || t == UITypeLinks
}

// IsReadOnly reports whether user input for the type is rejected.
func (t UIType) IsReadOnly() bool {
	switch t {
	case UITypeLookup, UITypeRollup, UITypeFormula, UITypeBarcode, UITypeQrCode,
		UITypeButton, UITypeCreatedTime, UITypeLastModifiedTime, UITypeLinks:
		return true
	}
	return false
}

// RelationType is the kind of a link column.
type RelationType string

// Relation kinds.
const (
	RelationBelongsTo  RelationType = "bt"
	RelationHasMany    RelationType = "hm"
	RelationManyToMany RelationType = "mm"
	RelationOneToOne   RelationType = "oo"
)

// RollupFunction is the aggregate applied by a rollup column.
type RollupFunction string

// Rollup functions.
const (
	RollupCount         RollupFunction = "count"
	RollupCountDistinct RollupFunction = "countDistinct"
	RollupSum           RollupFunction = "sum"
	RollupSumDistinct   RollupFunction = "sumDistinct"
	RollupAvg           RollupFunction = "avg"
	RollupAvgDistinct   RollupFunction = "avgDistinct"
	RollupMin           RollupFunction = "min"
	RollupMax           RollupFunction = "max"
)
