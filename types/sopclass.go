package types

// DICOM Application Context UID
// The Application Context defines the DICOM application-level message exchange rules.
const ApplicationContextUID = "1.2.840.10008.3.1.1.1"

// DICOM SOP Class UIDs as defined in DICOM Part 4, Annex B
// https://dicom.nema.org/medical/dicom/current/output/chtml/part04/sect_B.5.html

// Verification Service
const (
	VerificationSOPClass = "1.2.840.10008.1.1"
)

// Storage Service - Image Storage SOP Classes
const (
	// Computed Radiography
	ComputedRadiographyImageStorage = "1.2.840.10008.5.1.4.1.1.1"

	// Digital Radiography
	DigitalXRayImageStorageForPresentation            = "1.2.840.10008.5.1.4.1.1.1.1"
	DigitalXRayImageStorageForProcessing              = "1.2.840.10008.5.1.4.1.1.1.1.1"
	DigitalMammographyXRayImageStorageForPresentation = "1.2.840.10008.5.1.4.1.1.1.2"
	DigitalMammographyXRayImageStorageForProcessing   = "1.2.840.10008.5.1.4.1.1.1.2.1"
	DigitalIntraOralXRayImageStorageForPresentation   = "1.2.840.10008.5.1.4.1.1.1.3"
	DigitalIntraOralXRayImageStorageForProcessing     = "1.2.840.10008.5.1.4.1.1.1.3.1"

	// Computed Tomography
	CTImageStorage                        = "1.2.840.10008.5.1.4.1.1.2"
	EnhancedCTImageStorage                = "1.2.840.10008.5.1.4.1.1.2.1"
	LegacyConvertedEnhancedCTImageStorage = "1.2.840.10008.5.1.4.1.1.2.2"

	// Ultrasound
	UltrasoundMultiFrameImageStorage = "1.2.840.10008.5.1.4.1.1.3.1"
	UltrasoundImageStorage           = "1.2.840.10008.5.1.4.1.1.6.1"
	EnhancedUSVolumeStorage          = "1.2.840.10008.5.1.4.1.1.6.2"

	// Magnetic Resonance
	MRImageStorage                        = "1.2.840.10008.5.1.4.1.1.4"
	EnhancedMRImageStorage                = "1.2.840.10008.5.1.4.1.1.4.1"
	MRSpectroscopyStorage                 = "1.2.840.10008.5.1.4.1.1.4.2"
	EnhancedMRColorImageStorage           = "1.2.840.10008.5.1.4.1.1.4.3"
	LegacyConvertedEnhancedMRImageStorage = "1.2.840.10008.5.1.4.1.1.4.4"

	// Nuclear Medicine
	NuclearMedicineImageStorage = "1.2.840.10008.5.1.4.1.1.20"

	// Secondary Capture and Multi-frame
	SecondaryCaptureImageStorage                        = "1.2.840.10008.5.1.4.1.1.7"
	MultiFrameGrayscaleByteSecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7.1"
	MultiFrameGrayscaleWordSecondaryCaptureImageStorage = "1.2.840.10008.5.1.4.1.1.7.2"
	MultiFrameTrueColorSecondaryCaptureImageStorage     = "1.2.840.10008.5.1.4.1.1.7.3"
	MultiFrameSingleBitSecondaryCaptureImageStorage     = "1.2.840.10008.5.1.4.1.1.7.4"

	// X-Ray Angiographic
	XRayAngiographicImageStorage      = "1.2.840.10008.5.1.4.1.1.12.1"
	EnhancedXAImageStorage            = "1.2.840.10008.5.1.4.1.1.12.1.1"
	XRayRadiofluoroscopicImageStorage = "1.2.840.10008.5.1.4.1.1.12.2"
	EnhancedXRFImageStorage           = "1.2.840.10008.5.1.4.1.1.12.2.1"

	// Positron Emission Tomography
	PETImageStorage                        = "1.2.840.10008.5.1.4.1.1.128"
	EnhancedPETImageStorage                = "1.2.840.10008.5.1.4.1.1.130"
	LegacyConvertedEnhancedPETImageStorage = "1.2.840.10008.5.1.4.1.1.128.1"

	// RT (Radiation Therapy)
	RTImageStorage                   = "1.2.840.10008.5.1.4.1.1.481.1"
	RTDoseStorage                    = "1.2.840.10008.5.1.4.1.1.481.2"
	RTStructureSetStorage            = "1.2.840.10008.5.1.4.1.1.481.3"
	RTBeamsTreatmentRecordStorage    = "1.2.840.10008.5.1.4.1.1.481.4"
	RTPlanStorage                    = "1.2.840.10008.5.1.4.1.1.481.5"
	RTBrachyTreatmentRecordStorage   = "1.2.840.10008.5.1.4.1.1.481.6"
	RTTreatmentSummaryRecordStorage  = "1.2.840.10008.5.1.4.1.1.481.7"
	RTIonPlanStorage                 = "1.2.840.10008.5.1.4.1.1.481.8"
	RTIonBeamsTreatmentRecordStorage = "1.2.840.10008.5.1.4.1.1.481.9"

	// Visible Light (Endoscopy, Microscopy, Dermatology)
	VLEndoscopicImageStorage                  = "1.2.840.10008.5.1.4.1.1.77.1.1"
	VLMicroscopicImageStorage                 = "1.2.840.10008.5.1.4.1.1.77.1.2"
	VLSlideCoordinatesMicroscopicImageStorage = "1.2.840.10008.5.1.4.1.1.77.1.3"
	VLPhotographicImageStorage                = "1.2.840.10008.5.1.4.1.1.77.1.4"
	VLWholeSlideMicroscopyImageStorage        = "1.2.840.10008.5.1.4.1.1.77.1.6"

	// Ophthalmology
	OphthalmicPhotography8BitImageStorage               = "1.2.840.10008.5.1.4.1.1.77.1.5.1"
	OphthalmicPhotography16BitImageStorage              = "1.2.840.10008.5.1.4.1.1.77.1.5.2"
	OphthalmicOpticalCoherenceTomographyEnFaceStorage   = "1.2.840.10008.5.1.4.1.1.77.1.5.4"

	// Structured Reporting
	BasicTextSRStorage      = "1.2.840.10008.5.1.4.1.1.88.11"
	EnhancedSRStorage       = "1.2.840.10008.5.1.4.1.1.88.22"
	ComprehensiveSRStorage  = "1.2.840.10008.5.1.4.1.1.88.33"

	// Key Object Selection
	KeyObjectSelectionDocumentStorage = "1.2.840.10008.5.1.4.1.1.88.59"

	// Presentation State
	GrayscaleSoftcopyPresentationStateStorage = "1.2.840.10008.5.1.4.1.1.11.1"
	ColorSoftcopyPresentationStateStorage     = "1.2.840.10008.5.1.4.1.1.11.2"

	// Waveform
	TwelveLeadECGWaveformStorage = "1.2.840.10008.5.1.4.1.1.9.1.1"
	GeneralECGWaveformStorage    = "1.2.840.10008.5.1.4.1.1.9.1.2"

	// Raw Data
	RawDataStorage = "1.2.840.10008.5.1.4.1.1.66"

	// Dental (Intra-oral X-Ray, re-purposed from Digital Radiography above)

	// Encapsulated Documents
	EncapsulatedPDFStorage = "1.2.840.10008.5.1.4.1.1.104.1"
	EncapsulatedCDAStorage = "1.2.840.10008.5.1.4.1.1.104.2"
	EncapsulatedSTLStorage = "1.2.840.10008.5.1.4.1.1.104.3"
	EncapsulatedOBJStorage = "1.2.840.10008.5.1.4.1.1.104.4"
	EncapsulatedMTLStorage = "1.2.840.10008.5.1.4.1.1.104.5"
)

// SOPClassCategory is the closed set of modality families the negotiation
// and proposal-policy logic reason about. Unlike the teacher's free-form
// string Category field, this is a concrete type so a typo in a registry
// entry fails at compile time rather than silently falling into "Unknown".
type SOPClassCategory string

const (
	CategoryComputedRadiography        SOPClassCategory = "COMPUTED_RADIOGRAPHY"
	CategoryComputedTomography         SOPClassCategory = "COMPUTED_TOMOGRAPHY"
	CategoryMagneticResonance          SOPClassCategory = "MAGNETIC_RESONANCE"
	CategoryUltrasound                 SOPClassCategory = "ULTRASOUND"
	CategoryNuclearMedicine            SOPClassCategory = "NUCLEAR_MEDICINE"
	CategoryDigitalRadiography         SOPClassCategory = "DIGITAL_RADIOGRAPHY"
	CategoryDigitalMammography         SOPClassCategory = "DIGITAL_MAMMOGRAPHY"
	CategoryPetCt                      SOPClassCategory = "PET_CT"
	CategoryOpticalCoherenceTomography SOPClassCategory = "OPTICAL_COHERENCE_TOMOGRAPHY"
	CategoryEndoscopy                  SOPClassCategory = "ENDOSCOPY"
	CategoryMicroscopy                 SOPClassCategory = "MICROSCOPY"
	CategoryStructuredReporting        SOPClassCategory = "STRUCTURED_REPORTING"
	CategoryPresentation               SOPClassCategory = "PRESENTATION"
	CategoryWaveform                   SOPClassCategory = "WAVEFORM"
	CategoryRawData                    SOPClassCategory = "RAW_DATA"
	CategorySecondaryCapture           SOPClassCategory = "SECONDARY_CAPTURE"
	CategoryKeyObjectSelection         SOPClassCategory = "KEY_OBJECT_SELECTION"
	CategoryEnhanced                   SOPClassCategory = "ENHANCED"
	CategoryMultiFrame                 SOPClassCategory = "MULTI_FRAME"
	CategoryRadiotherapy               SOPClassCategory = "RADIOTHERAPY"
	CategoryOphthalmology              SOPClassCategory = "OPHTHALMOLOGY"
	CategoryDermatology                SOPClassCategory = "DERMATOLOGY"
	CategoryDental                     SOPClassCategory = "DENTAL"
	CategoryLegacy                     SOPClassCategory = "LEGACY"
	CategoryOther                      SOPClassCategory = "OTHER"

	// CategoryVerification and CategoryUnknown are bookkeeping categories
	// outside the closed modality set above: the former marks the
	// Verification SOP class itself, the latter is the fallback for any
	// UID absent from sopClassRegistry.
	CategoryVerification SOPClassCategory = "VERIFICATION"
	CategoryUnknown       SOPClassCategory = "UNKNOWN"
)

// SOPClassInfo provides human-readable information about a SOP Class UID.
type SOPClassInfo struct {
	UID      string
	Name     string
	Category SOPClassCategory
}

// GetSOPClassInfo returns information about a SOP Class UID. Unregistered
// UIDs resolve to CategoryUnknown rather than an error, so callers decide
// whether an unrecognized abstract syntax should be rejected or merely logged.
func GetSOPClassInfo(uid string) *SOPClassInfo {
	info, ok := sopClassRegistry[uid]
	if !ok {
		return &SOPClassInfo{UID: uid, Name: "Unknown", Category: CategoryUnknown}
	}
	return &info
}

// IsStorageSOPClass returns true if the UID is a registered, non-Verification
// SOP class. The Receiver uses this to decide whether a presentation context
// proposal should be offered storage handling at all.
func IsStorageSOPClass(uid string) bool {
	info := GetSOPClassInfo(uid)
	return info.Category != CategoryUnknown && info.Category != CategoryVerification
}

// sopClassRegistry maps SOP Class UIDs to their information.
var sopClassRegistry = map[string]SOPClassInfo{
	VerificationSOPClass: {UID: VerificationSOPClass, Name: "Verification SOP Class", Category: CategoryVerification},

	ComputedRadiographyImageStorage: {UID: ComputedRadiographyImageStorage, Name: "Computed Radiography Image Storage", Category: CategoryComputedRadiography},

	DigitalXRayImageStorageForPresentation: {UID: DigitalXRayImageStorageForPresentation, Name: "Digital X-Ray Image Storage - For Presentation", Category: CategoryDigitalRadiography},
	DigitalXRayImageStorageForProcessing:   {UID: DigitalXRayImageStorageForProcessing, Name: "Digital X-Ray Image Storage - For Processing", Category: CategoryDigitalRadiography},
	DigitalIntraOralXRayImageStorageForPresentation: {UID: DigitalIntraOralXRayImageStorageForPresentation, Name: "Digital Intra-Oral X-Ray Image Storage - For Presentation", Category: CategoryDental},
	DigitalIntraOralXRayImageStorageForProcessing:   {UID: DigitalIntraOralXRayImageStorageForProcessing, Name: "Digital Intra-Oral X-Ray Image Storage - For Processing", Category: CategoryDental},

	DigitalMammographyXRayImageStorageForPresentation: {UID: DigitalMammographyXRayImageStorageForPresentation, Name: "Digital Mammography X-Ray Image Storage - For Presentation", Category: CategoryDigitalMammography},
	DigitalMammographyXRayImageStorageForProcessing:   {UID: DigitalMammographyXRayImageStorageForProcessing, Name: "Digital Mammography X-Ray Image Storage - For Processing", Category: CategoryDigitalMammography},

	CTImageStorage:                        {UID: CTImageStorage, Name: "CT Image Storage", Category: CategoryComputedTomography},
	EnhancedCTImageStorage:                {UID: EnhancedCTImageStorage, Name: "Enhanced CT Image Storage", Category: CategoryEnhanced},
	LegacyConvertedEnhancedCTImageStorage: {UID: LegacyConvertedEnhancedCTImageStorage, Name: "Legacy Converted Enhanced CT Image Storage", Category: CategoryLegacy},

	MRImageStorage:                        {UID: MRImageStorage, Name: "MR Image Storage", Category: CategoryMagneticResonance},
	EnhancedMRImageStorage:                {UID: EnhancedMRImageStorage, Name: "Enhanced MR Image Storage", Category: CategoryEnhanced},
	MRSpectroscopyStorage:                 {UID: MRSpectroscopyStorage, Name: "MR Spectroscopy Storage", Category: CategoryMagneticResonance},
	EnhancedMRColorImageStorage:           {UID: EnhancedMRColorImageStorage, Name: "Enhanced MR Color Image Storage", Category: CategoryEnhanced},
	LegacyConvertedEnhancedMRImageStorage: {UID: LegacyConvertedEnhancedMRImageStorage, Name: "Legacy Converted Enhanced MR Image Storage", Category: CategoryLegacy},

	UltrasoundImageStorage:           {UID: UltrasoundImageStorage, Name: "Ultrasound Image Storage", Category: CategoryUltrasound},
	UltrasoundMultiFrameImageStorage: {UID: UltrasoundMultiFrameImageStorage, Name: "Ultrasound Multi-frame Image Storage", Category: CategoryUltrasound},
	EnhancedUSVolumeStorage:          {UID: EnhancedUSVolumeStorage, Name: "Enhanced US Volume Storage", Category: CategoryEnhanced},

	NuclearMedicineImageStorage: {UID: NuclearMedicineImageStorage, Name: "Nuclear Medicine Image Storage", Category: CategoryNuclearMedicine},

	PETImageStorage:                        {UID: PETImageStorage, Name: "PET Image Storage", Category: CategoryPetCt},
	EnhancedPETImageStorage:                {UID: EnhancedPETImageStorage, Name: "Enhanced PET Image Storage", Category: CategoryEnhanced},
	LegacyConvertedEnhancedPETImageStorage: {UID: LegacyConvertedEnhancedPETImageStorage, Name: "Legacy Converted Enhanced PET Image Storage", Category: CategoryLegacy},

	SecondaryCaptureImageStorage:                        {UID: SecondaryCaptureImageStorage, Name: "Secondary Capture Image Storage", Category: CategorySecondaryCapture},
	MultiFrameGrayscaleByteSecondaryCaptureImageStorage: {UID: MultiFrameGrayscaleByteSecondaryCaptureImageStorage, Name: "Multi-frame Grayscale Byte Secondary Capture Image Storage", Category: CategoryMultiFrame},
	MultiFrameGrayscaleWordSecondaryCaptureImageStorage: {UID: MultiFrameGrayscaleWordSecondaryCaptureImageStorage, Name: "Multi-frame Grayscale Word Secondary Capture Image Storage", Category: CategoryMultiFrame},
	MultiFrameTrueColorSecondaryCaptureImageStorage:     {UID: MultiFrameTrueColorSecondaryCaptureImageStorage, Name: "Multi-frame True Color Secondary Capture Image Storage", Category: CategoryMultiFrame},
	MultiFrameSingleBitSecondaryCaptureImageStorage:     {UID: MultiFrameSingleBitSecondaryCaptureImageStorage, Name: "Multi-frame Single Bit Secondary Capture Image Storage", Category: CategoryMultiFrame},

	XRayAngiographicImageStorage:      {UID: XRayAngiographicImageStorage, Name: "X-Ray Angiographic Image Storage", Category: CategoryDigitalRadiography},
	EnhancedXAImageStorage:            {UID: EnhancedXAImageStorage, Name: "Enhanced XA Image Storage", Category: CategoryEnhanced},
	XRayRadiofluoroscopicImageStorage: {UID: XRayRadiofluoroscopicImageStorage, Name: "X-Ray Radiofluoroscopic Image Storage", Category: CategoryDigitalRadiography},
	EnhancedXRFImageStorage:           {UID: EnhancedXRFImageStorage, Name: "Enhanced XRF Image Storage", Category: CategoryEnhanced},

	RTImageStorage:                   {UID: RTImageStorage, Name: "RT Image Storage", Category: CategoryRadiotherapy},
	RTDoseStorage:                    {UID: RTDoseStorage, Name: "RT Dose Storage", Category: CategoryRadiotherapy},
	RTStructureSetStorage:            {UID: RTStructureSetStorage, Name: "RT Structure Set Storage", Category: CategoryRadiotherapy},
	RTBeamsTreatmentRecordStorage:    {UID: RTBeamsTreatmentRecordStorage, Name: "RT Beams Treatment Record Storage", Category: CategoryRadiotherapy},
	RTPlanStorage:                    {UID: RTPlanStorage, Name: "RT Plan Storage", Category: CategoryRadiotherapy},
	RTBrachyTreatmentRecordStorage:   {UID: RTBrachyTreatmentRecordStorage, Name: "RT Brachy Treatment Record Storage", Category: CategoryRadiotherapy},
	RTTreatmentSummaryRecordStorage:  {UID: RTTreatmentSummaryRecordStorage, Name: "RT Treatment Summary Record Storage", Category: CategoryRadiotherapy},
	RTIonPlanStorage:                 {UID: RTIonPlanStorage, Name: "RT Ion Plan Storage", Category: CategoryRadiotherapy},
	RTIonBeamsTreatmentRecordStorage: {UID: RTIonBeamsTreatmentRecordStorage, Name: "RT Ion Beams Treatment Record Storage", Category: CategoryRadiotherapy},

	VLEndoscopicImageStorage:                  {UID: VLEndoscopicImageStorage, Name: "VL Endoscopic Image Storage", Category: CategoryEndoscopy},
	VLMicroscopicImageStorage:                 {UID: VLMicroscopicImageStorage, Name: "VL Microscopic Image Storage", Category: CategoryMicroscopy},
	VLSlideCoordinatesMicroscopicImageStorage: {UID: VLSlideCoordinatesMicroscopicImageStorage, Name: "VL Slide-Coordinates Microscopic Image Storage", Category: CategoryMicroscopy},
	VLPhotographicImageStorage:                {UID: VLPhotographicImageStorage, Name: "VL Photographic Image Storage", Category: CategoryDermatology},
	VLWholeSlideMicroscopyImageStorage:        {UID: VLWholeSlideMicroscopyImageStorage, Name: "VL Whole Slide Microscopy Image Storage", Category: CategoryMicroscopy},

	OphthalmicPhotography8BitImageStorage:             {UID: OphthalmicPhotography8BitImageStorage, Name: "Ophthalmic Photography 8 Bit Image Storage", Category: CategoryOphthalmology},
	OphthalmicPhotography16BitImageStorage:            {UID: OphthalmicPhotography16BitImageStorage, Name: "Ophthalmic Photography 16 Bit Image Storage", Category: CategoryOphthalmology},
	OphthalmicOpticalCoherenceTomographyEnFaceStorage: {UID: OphthalmicOpticalCoherenceTomographyEnFaceStorage, Name: "Ophthalmic Optical Coherence Tomography En Face Image Storage", Category: CategoryOpticalCoherenceTomography},

	BasicTextSRStorage:     {UID: BasicTextSRStorage, Name: "Basic Text SR Storage", Category: CategoryStructuredReporting},
	EnhancedSRStorage:      {UID: EnhancedSRStorage, Name: "Enhanced SR Storage", Category: CategoryStructuredReporting},
	ComprehensiveSRStorage: {UID: ComprehensiveSRStorage, Name: "Comprehensive SR Storage", Category: CategoryStructuredReporting},

	KeyObjectSelectionDocumentStorage: {UID: KeyObjectSelectionDocumentStorage, Name: "Key Object Selection Document Storage", Category: CategoryKeyObjectSelection},

	GrayscaleSoftcopyPresentationStateStorage: {UID: GrayscaleSoftcopyPresentationStateStorage, Name: "Grayscale Softcopy Presentation State Storage", Category: CategoryPresentation},
	ColorSoftcopyPresentationStateStorage:     {UID: ColorSoftcopyPresentationStateStorage, Name: "Color Softcopy Presentation State Storage", Category: CategoryPresentation},

	TwelveLeadECGWaveformStorage: {UID: TwelveLeadECGWaveformStorage, Name: "12-Lead ECG Waveform Storage", Category: CategoryWaveform},
	GeneralECGWaveformStorage:    {UID: GeneralECGWaveformStorage, Name: "General ECG Waveform Storage", Category: CategoryWaveform},

	RawDataStorage: {UID: RawDataStorage, Name: "Raw Data Storage", Category: CategoryRawData},

	EncapsulatedPDFStorage: {UID: EncapsulatedPDFStorage, Name: "Encapsulated PDF Storage", Category: CategoryOther},
	EncapsulatedCDAStorage: {UID: EncapsulatedCDAStorage, Name: "Encapsulated CDA Storage", Category: CategoryOther},
	EncapsulatedSTLStorage: {UID: EncapsulatedSTLStorage, Name: "Encapsulated STL Storage", Category: CategoryOther},
	EncapsulatedOBJStorage: {UID: EncapsulatedOBJStorage, Name: "Encapsulated OBJ Storage", Category: CategoryOther},
	EncapsulatedMTLStorage: {UID: EncapsulatedMTLStorage, Name: "Encapsulated MTL Storage", Category: CategoryOther},
}
