package types

import "testing"

func TestGetSOPClassInfo(t *testing.T) {
	tests := []struct {
		name     string
		uid      string
		wantName string
		wantCat  SOPClassCategory
	}{
		{
			name:     "CT Image Storage",
			uid:      CTImageStorage,
			wantName: "CT Image Storage",
			wantCat:  CategoryComputedTomography,
		},
		{
			name:     "MR Image Storage",
			uid:      MRImageStorage,
			wantName: "MR Image Storage",
			wantCat:  CategoryMagneticResonance,
		},
		{
			name:     "Enhanced CT Image Storage maps to Enhanced, not Computed Tomography",
			uid:      EnhancedCTImageStorage,
			wantName: "Enhanced CT Image Storage",
			wantCat:  CategoryEnhanced,
		},
		{
			name:     "Legacy Converted Enhanced CT Image Storage maps to Legacy",
			uid:      LegacyConvertedEnhancedCTImageStorage,
			wantName: "Legacy Converted Enhanced CT Image Storage",
			wantCat:  CategoryLegacy,
		},
		{
			name:     "PET Image Storage maps to PetCt",
			uid:      PETImageStorage,
			wantName: "PET Image Storage",
			wantCat:  CategoryPetCt,
		},
		{
			name:     "VL Endoscopic Image Storage maps to Endoscopy",
			uid:      VLEndoscopicImageStorage,
			wantName: "VL Endoscopic Image Storage",
			wantCat:  CategoryEndoscopy,
		},
		{
			name:     "VL Microscopic Image Storage maps to Microscopy",
			uid:      VLMicroscopicImageStorage,
			wantName: "VL Microscopic Image Storage",
			wantCat:  CategoryMicroscopy,
		},
		{
			name:     "VL Photographic Image Storage maps to Dermatology",
			uid:      VLPhotographicImageStorage,
			wantName: "VL Photographic Image Storage",
			wantCat:  CategoryDermatology,
		},
		{
			name:     "Digital Intra-Oral X-Ray Image Storage maps to Dental",
			uid:      DigitalIntraOralXRayImageStorageForPresentation,
			wantName: "Digital Intra-Oral X-Ray Image Storage - For Presentation",
			wantCat:  CategoryDental,
		},
		{
			name:     "Digital Mammography Image Storage maps to DigitalMammography",
			uid:      DigitalMammographyXRayImageStorageForPresentation,
			wantName: "Digital Mammography X-Ray Image Storage - For Presentation",
			wantCat:  CategoryDigitalMammography,
		},
		{
			name:     "Raw Data Storage maps to RawData",
			uid:      RawDataStorage,
			wantName: "Raw Data Storage",
			wantCat:  CategoryRawData,
		},
		{
			name:     "12-Lead ECG Waveform Storage maps to Waveform",
			uid:      TwelveLeadECGWaveformStorage,
			wantName: "12-Lead ECG Waveform Storage",
			wantCat:  CategoryWaveform,
		},
		{
			name:     "Basic Text SR Storage maps to StructuredReporting",
			uid:      BasicTextSRStorage,
			wantName: "Basic Text SR Storage",
			wantCat:  CategoryStructuredReporting,
		},
		{
			name:     "Key Object Selection Document Storage maps to KeyObjectSelection",
			uid:      KeyObjectSelectionDocumentStorage,
			wantName: "Key Object Selection Document Storage",
			wantCat:  CategoryKeyObjectSelection,
		},
		{
			name:     "Grayscale Softcopy Presentation State Storage maps to Presentation",
			uid:      GrayscaleSoftcopyPresentationStateStorage,
			wantName: "Grayscale Softcopy Presentation State Storage",
			wantCat:  CategoryPresentation,
		},
		{
			name:     "Ophthalmic Photography 8 Bit Image Storage maps to Ophthalmology",
			uid:      OphthalmicPhotography8BitImageStorage,
			wantName: "Ophthalmic Photography 8 Bit Image Storage",
			wantCat:  CategoryOphthalmology,
		},
		{
			name:     "Ophthalmic OCT En Face Storage maps to OpticalCoherenceTomography",
			uid:      OphthalmicOpticalCoherenceTomographyEnFaceStorage,
			wantName: "Ophthalmic Optical Coherence Tomography En Face Image Storage",
			wantCat:  CategoryOpticalCoherenceTomography,
		},
		{
			name:     "Multi-frame Secondary Capture maps to MultiFrame, not SecondaryCapture",
			uid:      MultiFrameTrueColorSecondaryCaptureImageStorage,
			wantName: "Multi-frame True Color Secondary Capture Image Storage",
			wantCat:  CategoryMultiFrame,
		},
		{
			name:     "Encapsulated PDF Storage maps to Other",
			uid:      EncapsulatedPDFStorage,
			wantName: "Encapsulated PDF Storage",
			wantCat:  CategoryOther,
		},
		{
			name:     "Verification SOP Class",
			uid:      VerificationSOPClass,
			wantName: "Verification SOP Class",
			wantCat:  CategoryVerification,
		},
		{
			name:     "Unknown SOP Class",
			uid:      "1.2.3.4.5.6.7.8.9",
			wantName: "Unknown",
			wantCat:  CategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := GetSOPClassInfo(tt.uid)
			if info.Name != tt.wantName {
				t.Errorf("GetSOPClassInfo(%s).Name = %s, want %s", tt.uid, info.Name, tt.wantName)
			}
			if info.Category != tt.wantCat {
				t.Errorf("GetSOPClassInfo(%s).Category = %s, want %s", tt.uid, info.Category, tt.wantCat)
			}
			if info.UID != tt.uid {
				t.Errorf("GetSOPClassInfo(%s).UID = %s, want %s", tt.uid, info.UID, tt.uid)
			}
		})
	}
}

func TestIsStorageSOPClass(t *testing.T) {
	tests := []struct {
		name string
		uid  string
		want bool
	}{
		{"CT Image Storage", CTImageStorage, true},
		{"MR Image Storage", MRImageStorage, true},
		{"Secondary Capture", SecondaryCaptureImageStorage, true},
		{"PET Image Storage", PETImageStorage, true},
		{"RT Dose Storage", RTDoseStorage, true},
		{"Encapsulated PDF Storage", EncapsulatedPDFStorage, true},
		{"Verification", VerificationSOPClass, false},
		{"Unknown", "1.2.3.4.5.6.7.8.9", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsStorageSOPClass(tt.uid)
			if got != tt.want {
				t.Errorf("IsStorageSOPClass(%s) = %v, want %v", tt.uid, got, tt.want)
			}
		})
	}
}

func TestSOPClassConstants(t *testing.T) {
	// Verify that all constants are properly defined with expected format
	sopClasses := []struct {
		name string
		uid  string
	}{
		{"VerificationSOPClass", VerificationSOPClass},
		{"CTImageStorage", CTImageStorage},
		{"MRImageStorage", MRImageStorage},
		{"UltrasoundImageStorage", UltrasoundImageStorage},
		{"SecondaryCaptureImageStorage", SecondaryCaptureImageStorage},
		{"PETImageStorage", PETImageStorage},
		{"RTImageStorage", RTImageStorage},
		{"EnhancedCTImageStorage", EnhancedCTImageStorage},
		{"EnhancedMRImageStorage", EnhancedMRImageStorage},
		{"NuclearMedicineImageStorage", NuclearMedicineImageStorage},
		{"EncapsulatedPDFStorage", EncapsulatedPDFStorage},
		{"BasicTextSRStorage", BasicTextSRStorage},
		{"KeyObjectSelectionDocumentStorage", KeyObjectSelectionDocumentStorage},
		{"RawDataStorage", RawDataStorage},
	}

	for _, tc := range sopClasses {
		t.Run(tc.name, func(t *testing.T) {
			if tc.uid == "" {
				t.Errorf("%s is empty", tc.name)
			}
			// All standard DICOM UIDs should start with "1.2.840.10008"
			if len(tc.uid) < 13 || tc.uid[:13] != "1.2.840.10008" {
				t.Errorf("%s = %s, should start with 1.2.840.10008", tc.name, tc.uid)
			}
		})
	}
}
